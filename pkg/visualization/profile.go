package visualization

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"sparseframe/pkg/sequence"
)

// SaveProfilePlot draws the background profile of the given frames against
// the radius axis. No frames selects every frame of the series. The image
// format follows the extension of filename.
func SaveProfilePlot(series *sequence.Series, frames []int, filename string) error {
	l := series.Layout()
	if len(frames) == 0 {
		frames = make([]int, series.FrameCount())
		for i := range frames {
			frames[i] = i
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Background profile (%s/%s)", l.Entry, l.Data)
	p.X.Label.Text = "Radius (px)"
	p.Y.Label.Text = "Background"

	for i, n := range frames {
		if n < 0 || n >= series.FrameCount() {
			return &sequence.FrameRangeError{Frame: n, Count: series.FrameCount()}
		}
		pts := make(plotter.XYs, len(l.Radius))
		for j, r := range l.Radius {
			pts[j] = plotter.XY{X: r, Y: l.Background[n][j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("frame %d", n), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 5*vg.Inch, filename); err != nil {
		return fmt.Errorf("save profile plot: %w", err)
	}
	return nil
}
