// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	sferrors "sfkit/cli/internal/errors"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// FormatError renders err with a title and a hint chosen by its kind.
// Cancellation renders as "" since the user asked for it.
func FormatError(err error) string {
	if err == nil || sferrors.IsKind(err, sferrors.Canceled) {
		return ""
	}

	title, hint := "Command failed", ""
	switch sferrors.KindOf(err) {
	case sferrors.AuthExpired:
		title, hint = "Session expired", "Run 'sfkit login' to authenticate again"
	case sferrors.Transport:
		title = "Request failed"
		if status := sferrors.StatusOf(err); status >= 500 {
			hint = "The org returned a server error; try again in a moment"
		} else if status == 401 {
			hint = "Run 'sfkit login' to authenticate again"
		}
	case sferrors.ProtocolShape:
		title, hint = "Unexpected response", "The org answered in a shape sfkit does not understand; check the API version"
	case sferrors.SizeLimit:
		title, hint = "Download too large", "Raise max_download_bytes or select fewer files"
	case sferrors.Timeout:
		title, hint = "Timed out", "Raise file_timeout or check your connection"
	case sferrors.Validation:
		title = "Invalid input"
	case sferrors.Config:
		title, hint = "Configuration problem", "Check ~/.config/sfkit/config.yaml and SFKIT_* variables"
	}

	var b strings.Builder
	b.WriteString(pterm.NewStyle(pterm.FgRed, pterm.Bold).Sprint(title))
	b.WriteString("\n")
	b.WriteString(Mask(err.Error()))
	if hint != "" {
		b.WriteString("\n")
		b.WriteString(pterm.NewStyle(pterm.FgYellow).Sprint("→ " + hint))
	}
	return b.String()
}
