package colours

import "github.com/fatih/color"

// Color scheme for the CLI
var (
	Title   = color.New(color.FgCyan, color.Bold)
	Author  = color.New(color.FgMagenta)
	Prompt  = color.New(color.FgGreen, color.Bold)
	Error   = color.New(color.FgRed, color.Bold)
	Success = color.New(color.FgGreen)
	Info    = color.New(color.FgBlue)
	Warning = color.New(color.FgYellow)
)

// Narration highlighting
var (
	Word     = color.New(color.FgBlack, color.BgYellow, color.Bold)
	Sentence = color.New(color.FgHiWhite)
	Dim      = color.New(color.FgHiBlack)
)
