package visualize

import (
	"os"
	"sync"

	"golang.org/x/image/font/opentype"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"

	"github.com/YuminosukeSato/bikecast/pkg/errors"
)

// CJKTypeface is the typeface name under which a registered font is cached.
const CJKTypeface = "NotoSansTC"

var fontMu sync.Mutex

// RegisterFont parses the OpenType file at path, adds it to the plot font
// cache and makes it the default for titles, labels and ticks. It returns
// false without error when the file does not exist.
func RegisterFont(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read font %s", path)
	}
	fnt, err := opentype.Parse(data)
	if err != nil {
		return false, errors.Wrapf(err, "parse font %s", path)
	}

	fontMu.Lock()
	defer fontMu.Unlock()
	face := font.Font{Typeface: CJKTypeface}
	font.DefaultCache.Add(font.Collection{{Font: face, Face: fnt}})
	plot.DefaultFont = face
	plotter.DefaultFont = face
	return true, nil
}
