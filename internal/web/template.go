package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/alarm-module/internal/status"
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
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"hex": func(v uint16) string {
		return fmt.Sprintf("0x%02x", v)
	},
	"ledOrUnknown": func(s string) string {
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
<title>Alarm Module</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.alarm { color: red; font-weight: bold; }
.armed { color: green; font-weight: bold; }
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
<h1>Alarm Module<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>State</h2>
<table>
<tr><th>LED</th><td id="led" class="{{if .Alarm.AnyCause}}alarm{{else if .Alarm.Armed}}armed{{else}}off{{end}}">{{ledOrUnknown .LED}}</td></tr>
<tr><th>Alarm status</th><td id="alarm-code">{{hex .Alarm.Pack}}</td></tr>
<tr><th>Armed</th><td id="armed">{{yesno .Alarm.Armed}}</td></tr>
<tr><th>Silenced</th><td id="silent">{{yesno .Alarm.SilentAlarm}}</td></tr>
<tr><th>Power tamper</th><td>{{if .Alarm.PowerTamperAlarm}}ALARM{{else if .Alarm.PowerTamperArmed}}armed{{else}}off{{end}}</td></tr>
<tr><th>Daisy chain</th><td>{{if .Alarm.DaisyChainTamperAlarm}}ALARM{{else if .Alarm.DaisyChainTamperArmed}}heartbeat ok{{else}}no heartbeat{{end}}{{if .DaisyMaster}} (master){{end}}</td></tr>
<tr><th>Disarm key</th><td>{{if .CanArm}}can arm{{else}}key present{{end}}</td></tr>
<tr><th>Ready</th><td>{{yesno .Ready}}</td></tr>
</table>

<h2>Channels</h2>
<table id="channels">
<tr><th>Channel</th><td>cable / armed / alarming</td></tr>
{{range $i, $c := .Channels}}<tr><th>{{$i}}</th><td class="{{if $c.Alarming}}alarm{{else if $c.Armed}}armed{{else}}off{{end}}">{{yesno $c.CablePresent}} / {{yesno $c.Armed}} / {{yesno $c.Alarming}}</td></tr>
{{end}}</table>

<h2>Module</h2>
<table>
<tr><th>Status</th><td>{{hex .Module.Pack}}</td></tr>
<tr><th>Master</th><td>{{yesno .Module.IsMaster}}</td></tr>
<tr><th>Powered</th><td>{{yesno .Module.Powered}}</td></tr>
<tr><th>Deep sleep</th><td>{{yesno .Module.DeepSleep}}</td></tr>
<tr><th>Shut down</th><td>{{yesno .Module.ShutDown}}</td></tr>
{{if .Mode}}<tr><th>Mode</th><td>{{.Mode}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Armed</th><td>{{.Counts.Armed}}</td></tr>
<tr><th>Disarmed</th><td>{{.Counts.Disarmed}}</td></tr>
<tr><th>Alarms</th><td>{{.Counts.Alarms}}</td></tr>
<tr><th>Silenced</th><td>{{.Counts.Silenced}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Auto-arm</th><td>{{.Config.AutoArmMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }
  function yn(b) { return b ? "yes" : "no"; }
  function cls(alarm, armed) { return alarm ? "alarm" : armed ? "armed" : "off"; }

  function apply(s) {
    var led = document.getElementById("led");
    led.textContent = s.led;
    led.className = cls(s.alarm.channel_alarm || s.alarm.power_tamper_alarm || s.alarm.daisy_chain_tamper_alarm, s.alarm.armed);
    document.getElementById("alarm-code").textContent = "0x" + ("0" + s.alarm.code.toString(16)).slice(-2);
    document.getElementById("armed").textContent = yn(s.alarm.armed);
    document.getElementById("silent").textContent = yn(s.alarm.silent_alarm);
    var rows = document.getElementById("channels").rows;
    s.channels.forEach(function(c) {
      var cell = rows[c.channel + 1].cells[1];
      cell.textContent = yn(c.cable_present) + " / " + yn(c.armed) + " / " + yn(c.alarming);
      cell.className = cls(c.alarming, c.armed);
    });
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(proto + "//" + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onmessage = function(ev) {
      try { apply(JSON.parse(ev.data).status); } catch (e) {}
    };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(function() { setDot("pending", "reconnecting"); connect(); }, 5000);
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
