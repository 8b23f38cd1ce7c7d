package report

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
)

var (
	addColumnRe  = regexp.MustCompile(`data\.addColumn\(\s*'([^']*)'\s*,\s*'([^']*)'\s*\);`)
	addRowsRe    = regexp.MustCompile(`data\.addRows\(([\s\S]*?)\);`)
	newDateRe    = regexp.MustCompile(`new Date\(([^)]*)\)`)
	trailCommaRe = regexp.MustCompile(`,\s*([\]}])`)
	chartAnchor  = regexp.MustCompile(`document\.getElementById\('([^']*)'\)`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// DecodeChartScript extracts the data table of a chart-rendering script,
// reading dates in the local time zone. It never fails: anything that cannot
// be decoded is left out.
func DecodeChartScript(script string) model.ChartSeries {
	return decodeChartScript(script, time.Local, nopLogger{})
}

// ChartAnchorID returns the element id the script draws into, "" when the
// script does not reference one.
func ChartAnchorID(script string) string {
	m := chartAnchor.FindStringSubmatch(script)
	if m == nil {
		return ""
	}
	return m[1]
}

// slug turns a series header into its point field key: "Jobs Created" -> "jobs_created".
func slug(header string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(header), "_")
}

func decodeChartScript(script string, loc *time.Location, log Logger) model.ChartSeries {
	series := model.ChartSeries{Headers: []string{}, Points: []model.ChartPoint{}}
	for _, m := range addColumnRe.FindAllStringSubmatch(script, -1) {
		if m[2] != "" {
			series.Headers = append(series.Headers, m[2])
		}
	}

	m := addRowsRe.FindStringSubmatch(script)
	if m == nil {
		return series
	}
	literal := strings.TrimSpace(m[1])
	if literal == "" || literal == "[]" {
		return series
	}

	literal = newDateRe.ReplaceAllString(literal, `"$1"`)
	literal = trailCommaRe.ReplaceAllString(literal, "$1")

	dec := json.NewDecoder(strings.NewReader(literal))
	dec.UseNumber()
	var rows []interface{}
	if err := dec.Decode(&rows); err != nil {
		log.Debug("chart data not decodable: %v", err)
		return series
	}

	keys := make([]string, len(series.Headers))
	for i, h := range series.Headers {
		keys[i] = slug(h)
	}

	for _, raw := range rows {
		row, ok := raw.([]interface{})
		if !ok || len(row) == 0 {
			continue
		}
		date, ok := chartDate(row[0], loc)
		if !ok {
			continue
		}
		point := model.ChartPoint{Date: date, Fields: make(map[string]float64)}
		for i := 1; i < len(keys) && i < len(row); i++ {
			if v, ok := chartValue(row[i]); ok {
				point.Fields[keys[i]] = v
			}
		}
		series.Points = append(series.Points, point)
	}
	return series
}

// chartDate reads "y,m,d,h,mi,s" with a zero-based month into epoch ms.
func chartDate(v interface{}, loc *time.Location) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	parts := strings.Split(s, ",")
	if len(parts) < 6 {
		return 0, false
	}
	var n [6]int
	for i := 0; i < 6; i++ {
		x, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return 0, false
		}
		n[i] = x
	}
	if loc == nil {
		loc = time.Local
	}
	t := time.Date(n[0], time.Month(n[1]+1), n[2], n[3], n[4], n[5], 0, loc)
	return t.UnixMilli(), true
}

func chartValue(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
