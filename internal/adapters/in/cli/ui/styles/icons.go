package styles

// Status and list glyphs. Plain unicode so no patched font is required.
const (
	IconSuccess = "✔"
	IconError   = "✖"
	IconWarning = "▲"
	IconInfo    = "●"
	IconBullet  = "▸"
)
