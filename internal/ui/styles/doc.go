// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the color palette and lipgloss styles for the chat
interface.

# Color System (colors.go)

Every color is a lipgloss.AdaptiveColor with a light and a dark variant:

  - Purple: assistant label and accents
  - Cyan: brand, user label, prompt
  - Emerald: connected thread indicator
  - Amber: thinking placeholder, warnings
  - Rose: error replies

# Theme (theme.go)

NewTheme resolves the variant once, either from the configured mode or from
termenv background detection, and builds concrete styles from it:

	theme := styles.NewTheme(styles.ModeAuto)
	fmt.Println(theme.UserLabel.Render("You"))

GlamourStyle returns the matching glamour standard style name so rendered
markdown agrees with the rest of the screen.
*/
package styles
