package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/monarco-bridge/internal/config"
	"github.com/sweeney/monarco-bridge/internal/status"
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
	"isContact": func(k config.Kind) bool { return k == config.KindContactSensor },
	"isSwitch":  func(k config.Kind) bool { return k == config.KindProgrammableSwitch },
	"isFan":     func(k config.Kind) bool { return k.IsFan() },
	"onOff": func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	},
	"volts": func(v float64) string { return fmt.Sprintf("%.2f V", v) },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Monarco Bridge</title>
<style>
body { font-family: monospace; max-width: 720px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 30%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.inert { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Monarco Bridge</h1>

<h2>Accessories</h2>
<table>
<tr><th>Device</th><th>Kind</th><th>State</th></tr>
{{range .Accessories}}<tr id="acc-{{.ID}}">
<td>{{.Name}} <small>({{.ID}})</small></td>
<td>{{.Kind}}</td>
<td>{{if .Inert}}<span class="inert">inert</span>{{else if isContact .Kind}}{{.Contact}}{{else if isSwitch .Kind}}{{.Presses}} presses{{else if isFan .Kind}}<span class="{{onOff .Fan.Active}}">{{onOff .Fan.Active}}</span> {{.Fan.RotationSpeed}}% {{.Fan.Target}}{{if .Fan.Boost}} boost{{end}}{{if .VoltsWritten}} / {{volts .Volts}}{{end}}{{end}}</td>
</tr>
{{else}}<tr><td colspan="3">no devices configured</td></tr>
{{end}}</table>

<h2>Controller</h2>
<table>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>Backend</th><td>{{.Config.Backend}}</td></tr>
{{if .Device.CPUID}}<tr><th>Firmware</th><td>{{.Device.Firmware}}</td></tr>
<tr><th>Hardware</th><td>{{.Device.Hardware}}</td></tr>
<tr><th>CPU ID</th><td>{{.Device.CPUID}}</td></tr>{{end}}
<tr><th>Driver errors</th><td>{{.DriverErrors}}{{if .LastDriverError}} ({{.LastDriverError}}){{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>HomeKit</th><td>{{if .Config.HomeKit}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
{{if .Config.Broker}}<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Contact</th><td>{{.Counts.Contact}}</td></tr>
<tr><th>Press</th><td>{{.Counts.Press}}</td></tr>
<tr><th>Fan state</th><td>{{.Counts.FanState}}</td></tr>
<tr><th>Fan output</th><td>{{.Counts.FanOutput}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Cycle</th><td>{{.Config.CycleMs}}ms</td></tr>
<tr><th>Watchdog</th><td>{{.Config.WatchdogSeconds}}s</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
