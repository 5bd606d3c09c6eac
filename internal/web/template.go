package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/hydro-controller/internal/status"
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
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"ago": humanize.Time,
	"mb": func(mb float64) string {
		return humanize.IBytes(uint64(mb * 1024 * 1024))
	},
	"ppm": func(v float64) string {
		return humanize.FormatFloat("#,###.#", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Reservoir Controller</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.degraded { color: orange; }
form { display: inline; }
</style>
</head>
<body>
<h1>Reservoir Controller</h1>

<h2>Pump</h2>
<table>
<tr><th>Pump</th><td id="pump-state" class="{{if .Pump.On}}on{{else}}off{{end}}">{{if .Pump.On}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Phase</th><td>{{orUnknown (printf "%s" .Pump.Phase)}} for {{uptime .Pump.Elapsed}}</td></tr>
<tr><th>Starts / stops</th><td>{{.Pump.Counts.On}} / {{.Pump.Counts.Off}}</td></tr>
<tr><th>Manual commands</th><td>{{.Pump.Counts.Manual}}</td></tr>
<tr><th>Override</th><td>
<form method="post" action="/api/pump"><input type="hidden" name="on" value="1"><button>Start</button></form>
<form method="post" action="/api/pump"><input type="hidden" name="on" value="0"><button>Stop</button></form>
</td></tr>
</table>

<h2>Water</h2>
<table>
{{with .Reading}}<tr><th>TDS</th><td id="tds">{{ppm .ConcentrationPPM}} ppm</td></tr>
<tr><th>Temperature</th><td{{if .Degraded}} class="degraded"{{end}}>{{if .Degraded}}probe missing, compensated at {{printf "%.1f" .TemperatureC}}&deg;C{{else}}{{printf "%.1f" .TemperatureC}}&deg;C{{end}}</td></tr>
<tr><th>Raw median</th><td>{{.Median}}</td></tr>
<tr><th>Measured</th><td>{{ago .Timestamp}}</td></tr>{{else}}<tr><th>TDS</th><td class="unknown">no reading yet</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Uplink</th><td class="{{if eq (printf "%s" .Link) "CONNECTED"}}connected{{else}}disconnected{{end}}">{{orUnknown (printf "%s" .Link)}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Attempts / failures</th><td>{{.LinkCounts.Attempts}} / {{.LinkCounts.Failures}}</td></tr>
<tr><th>Buffered</th><td>{{.Buffered}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Run</th><td>{{.RunID}}</td></tr>
<tr><th>Duty cycle</th><td>on {{.Config.OnLimit}}, rest {{.Config.OffLimitDay}} day / {{.Config.OffLimitNight}} night</td></tr>
<tr><th>Day window</th><td>{{.Config.DayStartHour}}:00 to {{.Config.DayEndHour}}:00</td></tr>
<tr><th>Sensor schedule</th><td>{{.Config.SensorSchedule}}</td></tr>
{{with .Host}}<tr><th>Load</th><td>{{printf "%.2f" .Load1}}</td></tr>
<tr><th>Memory</th><td>{{mb .MemUsedMB}} of {{mb .MemTotalMB}}</td></tr>
<tr><th>Disk</th><td>{{mb .DiskUsedMB}} of {{mb .DiskTotalMB}}</td></tr>{{end}}
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
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
