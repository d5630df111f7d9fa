package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/jack-sensor/internal/status"
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
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Jack Sensor</title>
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
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Jack Sensor{{if .Live}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>State</h2>
<table>
<tr><th>{{.SwitchName}}</th><td id="jack-state" class="{{if .JackAlive}}on{{else}}off{{end}}">{{.Accessory.Name}} ({{.Accessory.Value}})</td></tr>
<tr><th>Line out</th><td id="lineout-state" class="{{if .LineOutAlive}}on{{else}}off{{end}}">{{orUnknown (printf "%s" .LineOut)}}</td></tr>
<tr><th>Headset type</th><td id="headset-type">{{orUnknown (printf "%s" .HeadsetType)}}</td></tr>
<tr><th>Last event</th><td id="last-event">{{orUnknown (printf "%s" .LastEvent)}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Headset in</th><td>{{.Counts.Insertions}}</td></tr>
<tr><th>Headset out</th><td>{{.Counts.Removals}}</td></tr>
<tr><th>Line out in</th><td>{{.Counts.LineOutIn}}</td></tr>
<tr><th>Line out out</th><td>{{.Counts.LineOutOut}}</td></tr>
<tr><th>Hook presses</th><td>{{.Counts.HookPresses}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Platform</th><td>{{.Config.Platform}}</td></tr>
<tr><th>GPIO</th><td>{{.Config.Chip}} jack={{.Config.JackLine}} hook={{.Config.HookLine}} lineout={{.Config.LineOutLine}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/history.json">History</a> | <a href="/headset-type.json">Check headset type</a></p>
{{if .Live}}
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var jackEl = document.getElementById("jack-state");
  var lineEl = document.getElementById("lineout-state");
  var typeEl = document.getElementById("headset-type");
  var lastEl = document.getElementById("last-event");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(m) {
      try {
        var msg = JSON.parse(m.data);
        if (msg.type !== "event") return;
        var d = msg.data;
        lastEl.textContent = d.event;
        if (d.event === "HEADSET_IN" || d.event === "HEADSET_OUT") {
          jackEl.textContent = d.name + " (" + d.state + ")";
          jackEl.className = d.state === 2 ? "on" : "off";
        }
        if (d.lineout) {
          lineEl.textContent = d.lineout;
          lineEl.className = d.lineout === "PRESENT" ? "on" : "off";
        }
        if (d.headset_type) typeEl.textContent = d.headset_type;
      } catch (e) {}
    };
  }
  connect();
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, live bool) error {
	// Snapshot has methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime       time.Duration
		JackAlive    bool
		LineOutAlive bool
		SwitchName   string
		Live         bool
	}{
		Snapshot:     snap,
		Uptime:       snap.Uptime(),
		JackAlive:    snap.JackAlive(),
		LineOutAlive: snap.LineOutAlive(),
		SwitchName:   "h2w",
		Live:         live,
	}
	return indexTmpl.Execute(w, data)
}
