// Command pgsentry-watch renders a live view of the supervisor's
// status file: every cluster's primary, replicas, and lost nodes, plus
// whatever is currently clusterless.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/pgsentry/pkg/cluster"
	"github.com/dd0wney/pgsentry/pkg/node"
	"github.com/dd0wney/pgsentry/pkg/status"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2).
			MarginTop(1)

	clusterBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(0, 1).
			MarginLeft(2).
			MarginBottom(1)

	noPrimaryBoxStyle = clusterBoxStyle.
				BorderForeground(lipgloss.Color("#FF0000"))

	primaryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF00"))
	replicaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	lostStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))

	clusterlessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888")).
				MarginLeft(2).
				MarginTop(1)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).MarginLeft(2).MarginTop(1)
)

type refreshMsg struct {
	doc status.Document
	err error
}

type model struct {
	path     string
	interval time.Duration
	doc      status.Document
	err      error
}

func tickCmd(interval time.Duration, path string) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg { return readStatus(path) })
}

func readStatus(path string) tea.Msg {
	data, err := os.ReadFile(path)
	if err != nil {
		return refreshMsg{err: err}
	}
	var doc status.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return refreshMsg{err: err}
	}
	return refreshMsg{doc: doc}
}

func (m model) Init() tea.Cmd {
	return func() tea.Msg { return readStatus(m.path) }
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case refreshMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.doc = msg.doc
			m.err = nil
		}
		return m, tickCmd(m.interval, m.path)
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("pgsentry watch: %s", m.path)))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("  could not read status file: %v", m.err)))
		b.WriteString("\n")
	}

	for _, c := range m.doc.Clusters {
		b.WriteString(renderCluster(c))
	}

	b.WriteString(renderClusterless(m.doc.Clusterless))
	b.WriteString(helpStyle.Render("q to quit"))
	b.WriteString("\n")
	return b.String()
}

func renderCluster(c cluster.Snapshot) string {
	style := clusterBoxStyle
	var lines []string
	lines = append(lines, fmt.Sprintf("cluster %d", c.ClusterID))

	if c.Primary != nil {
		lines = append(lines, primaryStyle.Render("primary  "+nodeLabel(*c.Primary)))
	} else {
		style = noPrimaryBoxStyle
		lines = append(lines, lostStyle.Render("primary  (none)"))
	}
	for _, r := range c.Replicas {
		lines = append(lines, replicaStyle.Render("replica  "+nodeLabel(r)))
	}
	for _, l := range c.Lost {
		lines = append(lines, lostStyle.Render("lost     "+nodeLabel(l)))
	}

	return style.Render(strings.Join(lines, "\n")) + "\n"
}

func renderClusterless(nodes []node.View) string {
	if len(nodes) == 0 {
		return ""
	}
	var names []string
	for _, n := range nodes {
		names = append(names, nodeLabel(n))
	}
	return clusterlessStyle.Render("clusterless: "+strings.Join(names, ", ")) + "\n"
}

func nodeLabel(v node.View) string {
	age := time.Now().Unix() - v.Timestamp
	return fmt.Sprintf("%s (cluster_id=%d, age=%ds)", v.Name, v.ClusterID, age)
}

func main() {
	path := flag.String("status-file", "/var/run/pgsentry/status.json", "path to the supervisor's status file")
	interval := flag.Duration("interval", time.Second, "polling interval")
	flag.Parse()

	m := model{path: *path, interval: *interval}
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatalf("pgsentry-watch: %v", err)
	}
}
