package routertest

// natPage is the port forwarding page; %s receives the vs_list value.
const natPage = `<html>
<head>
<title>Virtual Server</title>
<script language="javascript">
var vs_pc_list = "0";
var vs_list = "%s";
var if_list = "";
</script>
</head>
<body>
<form method="post" action="setup.cgi">
<input type="hidden" name="todo" value="save">
</form>
</body>
</html>
`

// callLogPage is the VoIP call history page; %s receives a JSON array of records.
const callLogPage = `<html>
<head>
<script language="javascript">
var call_logs = %s;
</script>
</head>
<body></body>
</html>
`

// InfoPage is a status page as rendered by firmware with pending changes.
const InfoPage = `<html>
<head>
<title>Status</title>
<script language="javascript">
var headMsg = "Please do Apply to make the changes take effect.";
</script>
</head>
<body>
<form method="post" action="setup.cgi">
<table>
<tr><td>Internet</td></tr>
<tr><td><table>
<tr><td>WAN</td></tr>
<tr><td>Connection</td><td>IPoE</td><td>Link</td><td><script>document.write("Up");</script></td></tr>
<tr><td>IP Address</td><td>203.0.113.10</td><td>Gateway</td><td>203.0.113.1</td></tr>
<tr><td>Primary DNS</td><td>8.8.8.8</td><td>Secondary DNS</td><td>8.8.4.4</td></tr>
</table></td></tr>
<tr><td>Telephony</td></tr>
<tr><td><table>
<tr><td>Phone</td></tr>
<tr><td>Line</td><td>1</td></tr>
<tr><td>Registration</td><td><script>document.write("Up");</script></td></tr>
<tr><td>SIP Account</td><td>74951234567</td></tr>
</table></td></tr>
<tr><td>Device</td></tr>
<tr><td><table>
<tr><td>Device</td></tr>
<tr><td>Model</td><td>RV6688BCM</td><td>Firmware</td><td>RV6688BCM_2.0.12</td></tr>
<tr><td>GPON Serial</td><td>ZTEG1A2B3C4D</td><td>MAC Address</td><td>00:11:22:33:44:55</td></tr>
</table></td></tr>
<tr><td>Home Network</td></tr>
<tr><td><table>
<tr><td>LAN</td></tr>
<tr><td>IP Address</td><td>192.168.1.1</td><td>Status</td><td><script>document.write("Connected");</script></td></tr>
</table></td></tr>
</table>
</form>
</body>
</html>
`

// CallLogRecord is a call history record in the firmware's text format.
const CallLogRecord = "line 0, Answered, IN, Calling:0000000000000;cpc-rus=1;phone-cont(55.66.77.88), " +
	"Called:+100000000(11.22.33.44), Duration:0h:15m:34s, Mon Nov 28 19:43:31 2016"
