package display

import (
	"fmt"
	"io"
)

const banner = `     _                                _
 ___| |_ _ __ ___  __ _ _ __ ___  _ __ | |_   _  __ _
/ __| __| '__/ _ \/ _` + "`" + ` | '_ ` + "`" + ` _ \| '_ \| | | | |/ _` + "`" + ` |
\__ \ |_| | |  __/ (_| | | | | | | |_) | | |_| | (_| |
|___/\__|_|  \___|\__,_|_| |_| |_| .__/|_|\__,_|\__, |
                                 |_|            |___/`

// PrintBanner writes the ASCII art banner and version line to w.
func PrintBanner(w io.Writer, p Palette, version string) {
	fmt.Fprintln(w, p.Title(banner))
	fmt.Fprintf(w, "  v%s\n\n", version)
}
