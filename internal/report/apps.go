package report

import (
	"regexp"
	"strings"
	"time"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/model"
	"golang.org/x/net/html"
)

var (
	processesHeadingRe  = regexp.MustCompile(`Application \[(.+)\] - Processes`)
	activitiesHeadingRe = regexp.MustCompile(`Application \[(.+)\] - Process \[(.+)\] - Activities`)
)

const (
	appKeySeparator = " - "
	appChartPrefix  = "appChart"
)

// appKey is the identity of an application name: the part before " - ".
// "Order Service - 1.0" and "Order Service" share the key "Order Service".
func appKey(name string) string {
	if i := strings.Index(name, appKeySeparator); i >= 0 {
		return name[:i]
	}
	return name
}

// appTree builds applications in first-seen order. Entities are only ever
// appended, so an activity stays with the process it was added to.
type appTree struct {
	apps []*model.Application
	keys map[string]bool
}

func newAppTree() *appTree {
	return &appTree{keys: make(map[string]bool)}
}

func (t *appTree) add(key string, app *model.Application) {
	t.keys[key] = true
	t.apps = append(t.apps, app)
}

// resolve finds the first application whose name starts with the key of name.
func (t *appTree) resolve(name string) *model.Application {
	prefix := appKey(name)
	for _, app := range t.apps {
		if strings.HasPrefix(app.Name, prefix) {
			return app
		}
	}
	return nil
}

func newApplication(name, state string) *model.Application {
	return &model.Application{
		Name:      name,
		State:     state,
		Endpoints: []model.Endpoint{},
		Processes: []model.Process{},
	}
}

// sectionTable finds the table of an h4/h6 sub-section: after the heading
// itself, else after its wrapping parent.
func sectionTable(heading *html.Node) *html.Node {
	if table := FindTableAdjacentTo(heading); table != nil {
		return table
	}
	return FindTableAdjacentTo(heading.Parent)
}

// BuildApplications reads the application listing, per-application process
// tables and per-process activity tables into an ownership tree. Processes
// or activities whose owner has not been seen yet are dropped.
func BuildApplications(doc *html.Node, marker string) []model.Application {
	tree := newAppTree()

	for _, heading := range findAll(doc, "h4", "h6") {
		if heading.Parent == nil {
			continue
		}
		text := trimmedText(heading)
		table := sectionTable(heading)
		if table == nil {
			continue
		}

		switch heading.Data {
		case "h4":
			if strings.Contains(text, marker) {
				tree.addStubs(table)
			}
		case "h6":
			if m := activitiesHeadingRe.FindStringSubmatch(text); m != nil {
				tree.addActivities(m[1], m[2], table)
			} else if m := processesHeadingRe.FindStringSubmatch(text); m != nil {
				tree.addProcesses(m[1], table)
			}
		}
	}

	apps := make([]model.Application, 0, len(tree.apps))
	for _, app := range tree.apps {
		apps = append(apps, *app)
	}
	return apps
}

func (t *appTree) addStubs(table *html.Node) {
	for _, row := range dataRows(table) {
		cs := cells(row)
		if len(cs) == 0 {
			continue
		}
		full := cellText(cs, 0)
		key := appKey(full)
		if key == "" || t.keys[key] {
			continue
		}
		t.add(key, newApplication(full, "Running"))
	}
}

func (t *appTree) addProcesses(appName string, table *html.Node) {
	app := t.resolve(appName)
	if app == nil {
		app = newApplication(appName, "Unknown")
		t.add(appName, app)
	}
	for _, row := range dataRows(table) {
		cs := cells(row)
		if len(cs) < 5 {
			continue
		}
		name := cellText(cs, 0)
		if name == "" {
			name = "N/A"
		}
		app.Processes = append(app.Processes, model.Process{
			Name:       name,
			Created:    parseCount(cellText(cs, 1)),
			Completed:  parseCount(cellText(cs, 2)),
			Faulted:    parseCount(cellText(cs, 3)),
			Suspended:  parseCount(cellText(cs, 4)),
			Activities: []model.Activity{},
		})
	}
}

func (t *appTree) addActivities(appName, processName string, table *html.Node) {
	app := t.resolve(appName)
	if app == nil {
		return
	}
	var proc *model.Process
	for i := range app.Processes {
		if app.Processes[i].Name == processName {
			proc = &app.Processes[i]
			break
		}
	}
	if proc == nil {
		return
	}
	for _, row := range dataRows(table) {
		cs := cells(row)
		if len(cs) < 8 {
			continue
		}
		proc.Activities = append(proc.Activities, model.Activity{
			Name:              orNA(cellText(cs, 0)),
			Status:            orNA(cellText(cs, 1)),
			Executed:          parseCount(cellText(cs, 2)),
			Faulted:           parseCount(cellText(cs, 3)),
			RecentElapsedTime: parseCount(cellText(cs, 4)),
			MinElapsedTime:    parseCount(cellText(cs, 5)),
			MaxElapsedTime:    parseCount(cellText(cs, 6)),
			TotalElapsedTime:  parseCount(cellText(cs, 7)),
		})
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// chartScript is one decoded chart with the raw script it came from.
type chartScript struct {
	id     string
	source string
	series model.ChartSeries
}

// collectCharts decodes every script that draws into an element. Only charts
// with at least one point are kept; a later script with the same id wins.
func collectCharts(doc *html.Node, loc *time.Location, log Logger) (scripts []string, charts map[string]chartScript, order []string) {
	charts = make(map[string]chartScript)
	for _, s := range findAll(doc, "script") {
		src := textContent(s)
		scripts = append(scripts, src)
		id := ChartAnchorID(src)
		if id == "" {
			continue
		}
		series := decodeChartScript(src, loc, log)
		if len(series.Points) == 0 {
			log.Debug("chart %s: no points", id)
			continue
		}
		if _, seen := charts[id]; !seen {
			order = append(order, id)
		}
		charts[id] = chartScript{id: id, source: src, series: series}
	}
	return scripts, charts, order
}

// AttachCharts associates decoded chart scripts with applications and
// processes. An application takes the appChart* chart mentioning its name,
// else the first appChart*. A process takes the chart of the first script
// mentioning "Process [<name>]".
func AttachCharts(doc *html.Node, apps []model.Application, loc *time.Location, log Logger) {
	if log == nil {
		log = nopLogger{}
	}
	scripts, charts, order := collectCharts(doc, loc, log)
	if len(charts) == 0 {
		return
	}

	for i := range apps {
		app := &apps[i]
		if c, ok := appChart(charts, order, appKey(app.Name)); ok {
			app.ChartData = copySeries(c.series)
		}
		for j := range app.Processes {
			proc := &app.Processes[j]
			title := "Process [" + proc.Name + "]"
			for _, src := range scripts {
				if !strings.Contains(src, title) {
					continue
				}
				if c, ok := charts[ChartAnchorID(src)]; ok {
					proc.ChartData = copySeries(c.series)
				}
				break
			}
		}
	}
}

func appChart(charts map[string]chartScript, order []string, key string) (chartScript, bool) {
	var first *chartScript
	for _, id := range order {
		if !strings.HasPrefix(id, appChartPrefix) {
			continue
		}
		c := charts[id]
		if key != "" && strings.Contains(c.source, key) {
			return c, true
		}
		if first == nil {
			first = &c
		}
	}
	if first == nil {
		return chartScript{}, false
	}
	return *first, true
}

func copySeries(s model.ChartSeries) *model.ChartSeries {
	c := model.ChartSeries{
		Headers: append([]string(nil), s.Headers...),
		Points:  make([]model.ChartPoint, len(s.Points)),
	}
	for i, p := range s.Points {
		fields := make(map[string]float64, len(p.Fields))
		for k, v := range p.Fields {
			fields[k] = v
		}
		c.Points[i] = model.ChartPoint{Date: p.Date, Fields: fields}
	}
	return &c
}
