package app

// Key binding constants used in handleKey.
const (
	KeyQuit       = "q"
	KeyQuitUpper  = "Q"
	KeyCtrlC      = "ctrl+c"
	KeyEnter      = "enter"
	KeyEsc        = "esc"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyJ          = "j"
	KeyK          = "k"
	KeyOther      = "o"
	KeyUndo       = "u"
	KeyPrompt     = "p"
	KeyRefresh    = "r"
	KeyTempUp     = "+"
	KeyTempDown   = "-"
	KeyThreshUp   = "]"
	KeyThreshDown = "["
)
