package tui

import "strings"

// Below this window size the split layout degrades into a single
// column.
const (
	compactWidth  = 76
	compactHeight = 18
)

// panelGeometry splits the window into the template panel on the left
// and the conversation log on the right. Template names run long
// ("Consultant | Business Owner"), so the left panel gets a generous
// floor.
func panelGeometry(width, height int) (contentWidth, leftW, rightW, panelH int) {
	contentWidth = maxInt(54, width-2)
	leftW = minInt(46, maxInt(30, contentWidth/3))
	rightW = maxInt(36, contentWidth-leftW-1)
	panelH = maxInt(10, height-14)
	return contentWidth, leftW, rightW, panelH
}

func (m *model) resizeLayout() {
	m.input.Width = maxInt(22, m.width-12)

	if m.width < compactWidth || m.height < compactHeight {
		m.logViewport.Width = maxInt(20, m.width-4)
		m.logViewport.Height = maxInt(5, m.height-8)
		m.refreshLogViewport()
		return
	}

	_, _, rightW, panelH := panelGeometry(m.width, m.height)
	m.logViewport.Width = maxInt(22, rightW-2)
	m.logViewport.Height = maxInt(5, panelH-4)
	m.refreshLogViewport()
}

func (m *model) refreshLogViewport() {
	m.wrappedWidth = m.logViewport.Width
	m.wrappedLogs = wrapLogLines(m.logs, m.logViewport.Width)
	m.logViewport.SetContent(strings.Join(m.wrappedLogs, "\n"))
	if m.autoFollow {
		m.logViewport.GotoBottom()
	}
}
