package report

import (
	"bytes"
	"fmt"
	"html"
	"math"

	"langarhall/internal/provisioning"
)

// BarChartSVG renders the resource table as a simple SVG bar chart.
func BarChartSVG(table provisioning.Table) []byte {
	const (
		width     = 480
		height    = 320
		marginTop = 30
		marginBot = 40
		barGap    = 16
	)

	rows := table.Rows()
	plotHeight := float64(height - marginTop - marginBot)
	barWidth := (width - barGap*(len(rows)+1)) / len(rows)

	// Tallest bar fills the plot; an empty table draws flat bars
	maxQty := 0.0
	for _, r := range rows {
		maxQty = math.Max(maxQty, r.Quantity)
	}
	qtyToHeight := func(q float64) int {
		if maxQty == 0 {
			return 0
		}
		return int(q / maxQty * plotHeight)
	}

	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("<svg xmlns=\"http://www.w3.org/2000/svg\" width=\"%d\" height=\"%d\">\n", width, height))
	buf.WriteString(fmt.Sprintf("<rect width=\"%d\" height=\"%d\" fill=\"white\"/>\n", width, height))
	buf.WriteString(fmt.Sprintf("<text x=\"%d\" y=\"20\" text-anchor=\"middle\" font-size=\"16\">Food Requirements</text>\n", width/2))

	// Baseline
	baseY := height - marginBot
	buf.WriteString(fmt.Sprintf("<line x1=\"0\" y1=\"%d\" x2=\"%d\" y2=\"%d\" stroke=\"#999\"/>\n", baseY, width, baseY))

	buf.WriteString("<g fill=\"skyblue\">\n")
	for i, r := range rows {
		x := barGap + i*(barWidth+barGap)
		h := qtyToHeight(r.Quantity)
		buf.WriteString(fmt.Sprintf("<rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\"/>\n", x, baseY-h, barWidth, h))
	}
	buf.WriteString("</g>\n")

	buf.WriteString("<g font-size=\"11\" text-anchor=\"middle\">\n")
	for i, r := range rows {
		cx := barGap + i*(barWidth+barGap) + barWidth/2
		buf.WriteString(fmt.Sprintf("<text x=\"%d\" y=\"%d\">%s</text>\n", cx, baseY+16, html.EscapeString(r.Name)))
		buf.WriteString(fmt.Sprintf("<text x=\"%d\" y=\"%d\">%s</text>\n", cx, baseY-qtyToHeight(r.Quantity)-4, FormatQuantity(r.Quantity)))
	}
	buf.WriteString("</g>\n")

	buf.WriteString("</svg>")
	return buf.Bytes()
}
