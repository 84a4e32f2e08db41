// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles holds the color palette and lipgloss styles of the SecureAI
terminal client.

Colors are lipgloss.AdaptiveColor values, so the same palette works on light
and dark terminals. NewTheme detects the terminal background and color
profile with termenv; the "dark" and "light" modes force one side.

# Status colors

  - Cyan    - in-flight generation, prompts
  - Emerald - finished answers, successful operations
  - Rose    - errors
  - Amber   - warnings and confirmations
*/
package styles
