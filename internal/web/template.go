package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/lamp-controller/internal/lamp"
	"github.com/sweeney/lamp-controller/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"failures": func(c status.Counts, kind string) int {
		return c.Failures[lamp.FailureKind(kind)]
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Lamp Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Lamp Controller</h1>

<h2>State</h2>
<table>
<tr><th>Lamp</th><td id="lamp-state" class="{{if .State.LampState}}on{{else}}off{{end}}">{{onOff .State.LampState}}</td></tr>
<tr><th>Sensor mode</th><td id="sensor-state" class="{{if .State.SensorMode}}on{{else}}off{{end}}">{{onOff .State.SensorMode}}</td></tr>
<tr><th>Mode</th><td id="mode">{{.Mode}}</td></tr>
<tr><th>Last change</th><td>{{if .LastChange.IsZero}}never{{else}}{{.LastSource}} at {{.LastChange.UTC.Format "2006-01-02T15:04:05Z"}}{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Activity</h2>
<table>
<tr><th>Manual</th><td>{{.Counts.Manual}}</td></tr>
<tr><th>Automatic</th><td>{{.Counts.Automatic}}</td></tr>
<tr><th>Mode changes</th><td>{{.Counts.Mode}}</td></tr>
<tr><th>Rejected</th><td>{{.Counts.Rejected}}</td></tr>
<tr><th>Hardware failures</th><td>{{failures .Counts "hardware"}}</td></tr>
<tr><th>Persistence failures</th><td>{{failures .Counts "persistence"}}</td></tr>
<tr><th>Notification failures</th><td>{{failures .Counts "notification"}}</td></tr>
<tr><th>Sensor failures</th><td>{{failures .Counts "sensor"}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{if eq .Config.DebounceMs 0}}off{{else}}{{.Config.DebounceMs}}ms{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Pins</th><td>relay {{.Config.RelayPin}}, sensor {{.Config.SensorPin}}</td></tr>
<tr><th>Store</th><td>{{.Config.StorePath}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

// renderHTML executes into a buffer so a template error never leaves a
// half-written page.
func renderHTML(w io.Writer, snap status.Snapshot) error {
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Mode   lamp.Mode
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Mode:     snap.Mode(),
	}

	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}
