package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apiscout/apiscout/internal/analyzer"
)

// htmlData is the template context for the report page.
type htmlData struct {
	GeneratedAt       string
	TotalEndpoints    int
	StaticParamsCount int
	TemplateParamsCnt int
	FilesCount        int
	Endpoints         []htmlEndpoint
}

type htmlEndpoint struct {
	Path            string
	Methods         []string
	HasStatic       bool
	HasTemplate     bool
	HasDynamic      bool
	Params          []htmlParam
	TemplateParams  []string
	DynamicPatterns []string
	Bodies          []htmlBody
	Files           []string
}

type htmlParam struct {
	Name   string
	Values []htmlParamValue
}

type htmlParamValue struct {
	Text       string
	IsTemplate bool
	IsNull     bool
}

type htmlBody struct {
	Index       int
	ContentType string
	Properties  []htmlBodyProp
}

type htmlBodyProp struct {
	Name    string
	Type    string
	Example string
}

// WriteHTML renders the interactive endpoint report to path.
func WriteHTML(path string, result *analyzer.Result) error {
	data := buildHTMLData(result)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()
	return reportTemplate.Execute(f, data)
}

func buildHTMLData(result *analyzer.Result) htmlData {
	data := htmlData{
		GeneratedAt:    time.Now().Format("2006-01-02 15:04:05"),
		TotalEndpoints: len(result.BackendEndpoints),
	}

	allFiles := make(map[string]struct{})
	for _, path := range result.Endpoints() {
		info := result.BackendEndpoints[path]

		ep := htmlEndpoint{
			Path:            path,
			HasStatic:       len(info.Params) > 0,
			HasTemplate:     len(info.TemplateParams) > 0,
			HasDynamic:      len(info.DynamicPatterns) > 0,
			TemplateParams:  append([]string(nil), info.TemplateParams...),
			DynamicPatterns: append([]string(nil), info.DynamicPatterns...),
			Files:           append([]string(nil), info.Files...),
		}
		sort.Strings(ep.TemplateParams)
		sort.Strings(ep.DynamicPatterns)
		sort.Strings(ep.Files)

		ep.Methods = append([]string(nil), info.HTTPMethods...)
		sort.Strings(ep.Methods)

		for _, name := range sortedKeys(info.Params) {
			values := info.Params[name]
			data.StaticParamsCount += len(values)
			p := htmlParam{Name: name}
			for _, v := range values {
				p.Values = append(p.Values, htmlParamValue{
					Text:       v,
					IsTemplate: strings.Contains(v, "${"),
					IsNull:     v == "",
				})
			}
			ep.Params = append(ep.Params, p)
		}

		data.TemplateParamsCnt += len(info.TemplateParams)
		for _, f := range info.Files {
			allFiles[f] = struct{}{}
		}

		for i, body := range info.RequestBodies {
			b := htmlBody{Index: i + 1, ContentType: body.ContentType}
			if b.ContentType == "" {
				b.ContentType = "application/json"
			}
			propNames := make([]string, 0, len(body.Properties))
			for name := range body.Properties {
				propNames = append(propNames, name)
			}
			sort.Strings(propNames)
			for _, name := range propNames {
				prop := body.Properties[name]
				propType := prop.Type
				if propType == "" {
					propType = "string"
				}
				example := ""
				if prop.Example != nil {
					example = fmt.Sprintf("%v", prop.Example)
				}
				b.Properties = append(b.Properties, htmlBodyProp{Name: name, Type: propType, Example: example})
			}
			ep.Bodies = append(ep.Bodies, b)
		}

		data.Endpoints = append(data.Endpoints, ep)
	}

	data.FilesCount = len(allFiles)
	return data
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"lower": strings.ToLower,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>API Endpoints Analysis</title>
    <style>
        :root {
            --primary-color: #3498db;
            --secondary-color: #2c3e50;
            --success-color: #2ecc71;
            --warning-color: #f1c40f;
            --danger-color: #e74c3c;
            --light-color: #f8f9fa;
            --dark-color: #343a40;
            --border-color: #dee2e6;
        }

        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 1200px;
            margin: 0 auto;
            padding: 20px;
            background-color: #f5f5f5;
        }

        header {
            background: linear-gradient(135deg, var(--primary-color), var(--secondary-color));
            color: white;
            padding: 20px;
            border-radius: 5px;
            margin-bottom: 30px;
            box-shadow: 0 3px 10px rgba(0, 0, 0, 0.2);
        }

        h1 {
            margin: 0;
            font-size: 28px;
        }

        h2 {
            color: var(--secondary-color);
            border-bottom: 2px solid var(--primary-color);
            padding-bottom: 10px;
            margin-top: 40px;
        }

        .stats {
            display: flex;
            justify-content: space-between;
            margin: 20px 0;
            flex-wrap: wrap;
            gap: 15px;
        }

        .stat-card {
            flex: 1;
            background-color: white;
            border-radius: 5px;
            padding: 15px;
            box-shadow: 0 2px 5px rgba(0, 0, 0, 0.1);
            min-width: 200px;
            text-align: center;
        }

        .stat-card h3 {
            margin: 0;
            font-size: 16px;
            color: var(--dark-color);
        }

        .stat-value {
            font-size: 32px;
            font-weight: bold;
            color: var(--primary-color);
            margin: 10px 0;
        }

        .endpoint-card {
            background-color: white;
            border-radius: 5px;
            margin-bottom: 20px;
            box-shadow: 0 2px 5px rgba(0, 0, 0, 0.1);
        }

        .endpoint-header {
            padding: 15px;
            background-color: #f8f9fa;
            border-bottom: 1px solid var(--border-color);
            border-radius: 5px 5px 0 0;
            cursor: pointer;
            display: flex;
            justify-content: space-between;
        }

        .endpoint-header:hover {
            background-color: #e9ecef;
        }

        .endpoint-name {
            font-weight: bold;
            color: var(--primary-color);
            font-family: monospace;
            font-size: 16px;
        }

        .endpoint-content {
            padding: 20px;
        }

        .params-section {
            margin-top: 15px;
        }

        .params-title {
            font-weight: bold;
            margin-bottom: 10px;
            color: var(--secondary-color);
        }

        .param-list {
            background-color: #f8f9fa;
            border-radius: 5px;
            padding: 10px 15px;
            margin-bottom: 15px;
        }

        .param-item {
            margin: 5px 0;
            font-family: monospace;
        }

        .param-name {
            font-weight: bold;
            color: #e83e8c;
        }

        .param-value {
            color: #28a745;
        }

        .template-param {
            color: #fd7e14;
        }

        .files-section {
            margin-top: 15px;
        }

        .file-list {
            padding-left: 20px;
        }

        .search-container {
            margin-bottom: 20px;
        }

        #searchInput {
            width: 100%;
            padding: 10px;
            font-size: 16px;
            border: 2px solid var(--primary-color);
            border-radius: 5px;
        }

        .controls {
            margin: 20px 0;
            display: flex;
            justify-content: space-between;
            align-items: center;
        }

        button {
            background-color: var(--primary-color);
            color: white;
            border: none;
            padding: 10px 15px;
            border-radius: 5px;
            cursor: pointer;
            font-size: 14px;
            margin-right: 10px;
            transition: background-color 0.2s;
        }

        button:hover {
            background-color: #2980b9;
        }

        footer {
            margin-top: 40px;
            text-align: center;
            color: #6c757d;
            font-size: 14px;
            padding-top: 20px;
            border-top: 1px solid var(--border-color);
        }

        .collapsible {
            display: none;
        }

        .expand-all:after {
            content: ' [+]';
        }

        .badge {
            display: inline-block;
            padding: 3px 8px;
            font-size: 12px;
            font-weight: bold;
            border-radius: 10px;
            margin-left: 10px;
        }

        .badge-static {
            background-color: #e0f7fa;
            color: #0097a7;
        }

        .badge-template {
            background-color: #fff3e0;
            color: #e65100;
        }

        .badge-dynamic {
            background-color: #e8f5e9;
            color: #2e7d32;
        }

        .method-badge {
            display: inline-block;
            padding: 3px 8px;
            font-size: 12px;
            font-weight: bold;
            border-radius: 10px;
            margin-left: 5px;
        }

        .method-get {
            background-color: #e3f2fd;
            color: #1565c0;
        }

        .method-post {
            background-color: #e8f5e9;
            color: #2e7d32;
        }

        .method-put {
            background-color: #fff8e1;
            color: #ff8f00;
        }

        .method-delete {
            background-color: #ffebee;
            color: #c62828;
        }

        .method-patch {
            background-color: #e0f2f1;
            color: #00695c;
        }

        .body-title {
            font-weight: bold;
            margin: 10px 0 5px;
            color: var(--secondary-color);
        }

        .param-type {
            color: #6c757d;
            font-style: italic;
        }

        .no-results {
            background-color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px;
            box-shadow: 0 2px 5px rgba(0, 0, 0, 0.1);
            margin-top: 20px;
            color: #6c757d;
        }
    </style>
</head>
<body>
    <header>
        <h1>API Endpoints Analysis</h1>
        <p>Analysis of API endpoints and query parameters found in JavaScript files.</p>
        <p class="generation-date">Generated on: {{.GeneratedAt}}</p>
    </header>

    <div class="search-container">
        <input type="text" id="searchInput" placeholder="Search for endpoints, parameters, or files...">
    </div>

    <div class="controls">
        <div>
            <button id="expandAll" class="expand-all">Expand All</button>
            <button id="collapseAll">Collapse All</button>
        </div>
        <div>
            <label for="filterDropdown">Filter by: </label>
            <select id="filterDropdown">
                <option value="all">All Endpoints</option>
                <option value="static">Static Parameters</option>
                <option value="template">Template Parameters</option>
                <option value="dynamic">Dynamic Parameters</option>
            </select>
        </div>
    </div>

    <div class="stats">
        <div class="stat-card">
            <h3>Total Endpoints</h3>
            <div class="stat-value" id="totalEndpoints">{{.TotalEndpoints}}</div>
        </div>
        <div class="stat-card">
            <h3>Static Parameters</h3>
            <div class="stat-value" id="staticParamsCount">{{.StaticParamsCount}}</div>
        </div>
        <div class="stat-card">
            <h3>Template Parameters</h3>
            <div class="stat-value" id="templateParamsCount">{{.TemplateParamsCnt}}</div>
        </div>
        <div class="stat-card">
            <h3>Unique Files</h3>
            <div class="stat-value" id="filesCount">{{.FilesCount}}</div>
        </div>
    </div>

    <h2>API Endpoints</h2>
    <div id="endpoints-container">
{{range .Endpoints}}
<div class="endpoint-card">
    <div class="endpoint-header">
        <span class="endpoint-name">{{.Path}}</span>
        <span>
            {{range .Methods}}<span class="method-badge method-{{. | lower}}">{{.}}</span>{{end}}
            {{if .HasStatic}}<span class="badge badge-static">Static Params</span>{{end}}
            {{if .HasTemplate}}<span class="badge badge-template">Template Vars</span>{{end}}
            {{if .HasDynamic}}<span class="badge badge-dynamic">Dynamic</span>{{end}}
        </span>
    </div>
    <div class="endpoint-content collapsible">
        {{if .Params}}
        <div class="params-section static-params">
            <div class="params-title">Static Parameters:</div>
            <div class="param-list">
                {{range .Params}}<div class="param-item"><span class="param-name">{{.Name}}</span>: {{range $i, $v := .Values}}{{if $i}}, {{end}}{{if $v.IsNull}}<i>null</i>{{else if $v.IsTemplate}}<span class="template-param">{{$v.Text}}</span>{{else}}{{$v.Text}}{{end}}{{end}}</div>
                {{end}}
            </div>
        </div>
        {{end}}
        {{if .TemplateParams}}
        <div class="params-section template-params">
            <div class="params-title">Template Variables:</div>
            <div class="param-list">
                {{range .TemplateParams}}<div class="param-item"><span class="template-param">${{"{"}}{{.}}{{"}"}}</span></div>
                {{end}}
            </div>
        </div>
        {{end}}
        {{if .DynamicPatterns}}
        <div class="params-section dynamic-patterns">
            <div class="params-title">Dynamic Patterns:</div>
            <div class="param-list">
                {{range .DynamicPatterns}}<div class="param-item">{{.}}</div>
                {{end}}
            </div>
        </div>
        {{end}}
        {{if .Bodies}}
        <div class="params-section request-bodies">
            <div class="params-title">Request Body Structure:</div>
            {{range .Bodies}}
            <div class="param-list">
                <div class="body-title">Body #{{.Index}} ({{.ContentType}}):</div>
                {{range .Properties}}<div class="param-item"><span class="param-name">{{.Name}}</span>: <span class="param-type">({{.Type}})</span> {{.Example}}</div>
                {{end}}
            </div>
            {{end}}
        </div>
        {{end}}
        <div class="files-section">
            <div class="params-title">Found in files:</div>
            <div class="file-list">
                {{range .Files}}<div>{{.}}</div>
                {{end}}
            </div>
        </div>
    </div>
</div>
{{end}}
    </div>

    <footer>
        <p>Generated by apiscout</p>
    </footer>

    <script>
        document.getElementById('searchInput').addEventListener('input', filterEndpoints);
        document.getElementById('filterDropdown').addEventListener('change', filterEndpoints);

        function filterEndpoints() {
            const searchTerm = document.getElementById('searchInput').value.toLowerCase();
            const filterType = document.getElementById('filterDropdown').value;
            const endpointCards = document.querySelectorAll('.endpoint-card');
            let visibleCount = 0;

            endpointCards.forEach(card => {
                const endpointText = card.textContent.toLowerCase();
                const hasStaticParams = card.querySelector('.static-params') !== null;
                const hasTemplateParams = card.querySelector('.template-params') !== null;
                const hasDynamicPatterns = card.querySelector('.dynamic-patterns') !== null;

                let shouldShow = endpointText.includes(searchTerm);

                if (shouldShow && filterType !== 'all') {
                    if (filterType === 'static' && !hasStaticParams) shouldShow = false;
                    if (filterType === 'template' && !hasTemplateParams) shouldShow = false;
                    if (filterType === 'dynamic' && !hasDynamicPatterns) shouldShow = false;
                }

                card.style.display = shouldShow ? 'block' : 'none';
                if (shouldShow) visibleCount++;
            });

            const noResultsEl = document.getElementById('no-results');
            if (visibleCount === 0) {
                if (!noResultsEl) {
                    const message = document.createElement('div');
                    message.id = 'no-results';
                    message.className = 'no-results';
                    message.textContent = 'No endpoints match your search criteria.';
                    document.getElementById('endpoints-container').appendChild(message);
                }
            } else if (noResultsEl) {
                noResultsEl.remove();
            }
        }

        document.querySelectorAll('.endpoint-header').forEach(header => {
            header.addEventListener('click', function() {
                const content = this.nextElementSibling;
                content.style.display = content.style.display === 'block' ? 'none' : 'block';
            });
        });

        document.getElementById('expandAll').addEventListener('click', function() {
            const contents = document.querySelectorAll('.endpoint-content');
            const isExpanding = this.classList.contains('expand-all');

            contents.forEach(content => {
                const card = content.closest('.endpoint-card');
                if (card.style.display !== 'none') {
                    content.style.display = isExpanding ? 'block' : 'none';
                }
            });

            if (isExpanding) {
                this.textContent = 'Collapse All';
                this.classList.remove('expand-all');
            } else {
                this.textContent = 'Expand All';
                this.classList.add('expand-all');
            }
        });

        document.getElementById('collapseAll').addEventListener('click', function() {
            document.querySelectorAll('.endpoint-content').forEach(content => {
                content.style.display = 'none';
            });
            const expandAllBtn = document.getElementById('expandAll');
            expandAllBtn.textContent = 'Expand All';
            expandAllBtn.classList.add('expand-all');
        });
    </script>
</body>
</html>
`))
