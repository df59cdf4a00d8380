package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/squeeze-sensor/internal/status"
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
	"phaseOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"ms": func(d time.Duration) int64 {
		return d.Milliseconds()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Squeeze Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.idle { color: #888; }
.pressed { color: green; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Squeeze Sensor<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Classifier</h2>
<table>
<tr><th>Phase</th><td id="phase" class="{{if .State.Phase.Pressed}}pressed{{else if eq (phaseOrUnknown (printf "%s" .State.Phase)) "IDLE"}}idle{{else}}unknown{{end}}">{{phaseOrUnknown (printf "%s" .State.Phase)}}</td></tr>
<tr><th>Enabled</th><td>{{if .Config.Enabled}}yes{{else}}no{{end}}</td></tr>
<tr><th>Long timer</th><td id="timer">{{if .TimerArmed}}armed{{else}}idle{{end}}</td></tr>
<tr><th>Wake hold</th><td id="wake">{{if .WakeHeld}}held{{else}}released{{end}}</td></tr>
{{if .State.Phase.Pressed}}<tr><th>Peak force</th><td>{{.State.PeakForce}}</td></tr>
<tr><th>Long threshold</th><td>{{ms .State.LongThreshold}}ms</td></tr>{{end}}
</table>

<h2>Gestures</h2>
<table>
<tr><th>Short</th><td id="c-short">{{.Counts.Short}}</td></tr>
<tr><th>Long</th><td id="c-long">{{.Counts.Long}}</td></tr>
<tr><th>Bounce</th><td id="c-bounce">{{.Counts.Bounce}}</td></tr>
<tr><th>Weak</th><td id="c-weak">{{.Counts.Weak}}</td></tr>
<tr><th>Cancelled</th><td id="c-cancelled">{{.Counts.Cancelled}}</td></tr>
<tr><th>Aborted</th><td>{{.Counts.Aborted}}</td></tr>
<tr><th>Out of order</th><td>{{.Counts.OutOfOrder}}</td></tr>
<tr><th>Timer races</th><td>{{.Counts.TimerRaces}}</td></tr>
<tr><th>Wake hold errors</th><td>{{.Counts.WakeHoldErrors}}</td></tr>
<tr><th>Published</th><td>{{.Dispatch.Published}}</td></tr>
<tr><th>Dropped</th><td>{{.Dispatch.Dropped}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Force threshold</th><td>{{.Config.ForceThreshold}}</td></tr>
<tr><th>Long squeeze</th><td>{{.Config.LongDurationMs}}ms</td></tr>
<tr><th>Debounce floor</th><td>{{.Config.MinDurationMs}}ms</td></tr>
<tr><th>Wake hold timeout</th><td>{{.Config.WakeHoldTimeoutMs}}ms</td></tr>
<tr><th>Short action</th><td>{{.Config.ShortAction}}</td></tr>
<tr><th>Long action</th><td>{{.Config.LongAction}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var phase = document.getElementById("phase");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function setText(id, v) {
    var el = document.getElementById(id);
    if (el) { el.textContent = v; }
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      try {
        var s = JSON.parse(ev.data).status;
        phase.textContent = s.phase;
        phase.className = s.phase === "IDLE" ? "idle" : s.press ? "pressed" : "unknown";
        setText("timer", s.timer_armed ? "armed" : "idle");
        setText("wake", s.wake_held ? "held" : "released");
        setText("c-short", s.gesture_counts.short);
        setText("c-long", s.gesture_counts.long);
        setText("c-bounce", s.gesture_counts.bounce);
        setText("c-weak", s.gesture_counts.weak);
        setText("c-cancelled", s.gesture_counts.cancelled);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
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
