// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"io"

	"github.com/muesli/termenv"
)

// palette contains the output styles, depending on the color capabilities
// of the output.
type palette struct {
	pending  termenv.Style
	replied  termenv.Style
	dropped  termenv.Style
	headline termenv.Style
}

// newPalette returns the palette for the specified output, which is plain
// when the output isn't a terminal.
func newPalette(w io.Writer) palette {
	out := termenv.NewOutput(w)
	return palette{
		pending:  out.String().Foreground(termenv.ANSIYellow),
		replied:  out.String().Foreground(termenv.ANSIGreen),
		dropped:  out.String().Foreground(termenv.ANSIRed),
		headline: out.String().Bold(),
	}
}
