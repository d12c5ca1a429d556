package render

import (
	"fmt"
	"html"
)

const indexPage = `<html>
<head><title>Agent Telephone</title></head>
<body>
<h1>Agent Telephone</h1>
<form id="runForm" style="max-width: 600px; margin: auto;">
  <label for="rounds">Number of rounds:</label>
  <input type="number" id="rounds" name="rounds" value="%d" min="0" style="width:80px;"/>
  <br><br>
  <label for="message">Initial message:</label><br>
  <textarea id="message" name="message" rows="3" cols="60" style="width:100%%;">%s</textarea>
  <br><br>
  <input type="submit" value="Run Telephone" style="padding:6px 12px;"/>
</form>
<div id="results" style="max-width: 800px; margin: auto; padding-top: 20px;"></div>
<script>
  var evtSource = null;
  document.getElementById("runForm").addEventListener("submit", function(event) {
    event.preventDefault();
    if (evtSource) { evtSource.close(); }
    var results = document.getElementById("results");
    results.innerHTML = "";
    var html = "";
    var rounds = document.getElementById("rounds").value;
    var message = document.getElementById("message").value;
    evtSource = new EventSource("/stream?rounds=" + rounds + "&message=" + encodeURIComponent(message));
    var append = function(e) { html += e.data; results.innerHTML = html; };
    ["preamble", "seed", "pending", "turn"].forEach(function(name) {
      evtSource.addEventListener(name, append);
    });
    evtSource.addEventListener("complete", function(e) { append(e); evtSource.close(); });
    evtSource.addEventListener("relay_error", function(e) { append(e); evtSource.close(); });
    evtSource.onerror = function(e) {
      console.error("EventSource error:", e);
      evtSource.close();
    };
  });
</script>
</body>
</html>
`

// Index renders the landing page with the relay form pre-filled.
func Index(rounds int, message string) string {
	return fmt.Sprintf(indexPage, rounds, html.EscapeString(message))
}
