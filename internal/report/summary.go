package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/pterm/pterm"

	"github.com/apiscout/apiscout/internal/analyzer"
)

// Summary aggregates scan counters for the console report.
type Summary struct {
	Target            string
	SessionID         string
	Duration          time.Duration
	ScriptsFound      int
	ScriptsDownloaded int
	DownloadErrors    int
	Endpoints         int
	StaticParams      int
	TemplateParams    int
	RequestBodies     int
	ResultsDir        string
}

// PrintSummary renders the end-of-scan overview to the terminal.
func PrintSummary(s Summary) {
	pterm.DefaultSection.Println("Scan Summary")

	rows := pterm.TableData{
		{"Target", s.Target},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
		{"Scripts found", fmt.Sprintf("%d", s.ScriptsFound)},
		{"Scripts downloaded", fmt.Sprintf("%d", s.ScriptsDownloaded)},
		{"Download errors", fmt.Sprintf("%d", s.DownloadErrors)},
		{"API endpoints", fmt.Sprintf("%d", s.Endpoints)},
		{"Static parameters", fmt.Sprintf("%d", s.StaticParams)},
		{"Template variables", fmt.Sprintf("%d", s.TemplateParams)},
		{"Request bodies", fmt.Sprintf("%d", s.RequestBodies)},
	}
	if s.SessionID != "" {
		rows = append(pterm.TableData{{"Session", s.SessionID}}, rows...)
	}

	if err := pterm.DefaultTable.WithData(rows).Render(); err != nil {
		// Fall back to plain output when the terminal rejects rendering.
		for _, row := range rows {
			fmt.Printf("  %-20s %s\n", row[0], row[1])
		}
	}

	if s.ResultsDir != "" {
		pterm.Success.Printfln("Results written to %s", s.ResultsDir)
	}
}

// SummaryFromResult fills the endpoint counters from an analysis result.
func SummaryFromResult(s Summary, result *analyzer.Result) Summary {
	s.Endpoints = len(result.BackendEndpoints)
	for _, ep := range result.BackendEndpoints {
		for _, values := range ep.Params {
			s.StaticParams += len(values)
		}
		s.TemplateParams += len(ep.TemplateParams)
		s.RequestBodies += len(ep.RequestBodies)
	}
	return s
}

// PrintDomains lists discovered reference domains grouped by party.
func PrintDomains(firstParty, external map[string]map[string][]string) {
	printDomainGroup("First-party domains", firstParty)
	printDomainGroup("External domains", external)
}

func printDomainGroup(title string, group map[string]map[string][]string) {
	if len(group) == 0 {
		return
	}
	pterm.DefaultSection.WithLevel(2).Println(title)

	domains := make([]string, 0, len(group))
	for d := range group {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	items := make([]pterm.BulletListItem, 0, len(domains))
	for _, d := range domains {
		refs := 0
		for _, urls := range group[d] {
			refs += len(urls)
		}
		items = append(items, pterm.BulletListItem{
			Level: 0,
			Text:  fmt.Sprintf("%s (%d references)", d, refs),
		})
	}
	if err := pterm.DefaultBulletList.WithItems(items).Render(); err != nil {
		for _, item := range items {
			fmt.Println("  -", item.Text)
		}
	}
}

// PrintEndpoints lists the endpoints with their methods, most useful
// with --verbose on small scans.
func PrintEndpoints(result *analyzer.Result) {
	if len(result.BackendEndpoints) == 0 {
		pterm.Warning.Println("No API endpoints found")
		return
	}
	pterm.DefaultSection.WithLevel(2).Println("Endpoints")
	for _, path := range result.Endpoints() {
		ep := result.BackendEndpoints[path]
		pterm.Printfln("  %s %s", pterm.Cyan(fmt.Sprintf("%-24v", ep.HTTPMethods)), path)
	}
}
