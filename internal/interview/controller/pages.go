package controller

import (
	"bytes"
	"html/template"
)

const preparingPage = `<!DOCTYPE html>
<html>
<head>
  <title>Preparing Environment</title>
  <meta http-equiv="refresh" content="5">
  <style>
    body { font-family: sans-serif; display: flex; flex-direction: column; justify-content: center; align-items: center; height: 100vh; margin: 0; background-color: #f0f2f5; }
    .loader { border: 8px solid #f3f3f3; border-top: 8px solid #3498db; border-radius: 50%; width: 60px; height: 60px; animation: spin 2s linear infinite; }
    @keyframes spin { 0% { transform: rotate(0deg); } 100% { transform: rotate(360deg); } }
    h1 { color: #333; }
    p { color: #666; }
  </style>
</head>
<body>
  <div class="loader"></div>
  <h1>Your coding environment is being prepared.</h1>
  <p>This page will automatically refresh in a moment.</p>
</body>
</html>
`

const closedPage = `<!DOCTYPE html>
<html>
<head><title>Session Completed</title></head>
<body>
  <h1>This interview session has been completed.</h1>
</body>
</html>
`

var messagePage = template.Must(template.New("message").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
  <h1>{{.Message}}</h1>
</body>
</html>
`))

// renderMessage renders a one-line page. Messages may carry user input and
// are escaped.
func renderMessage(title, message string) string {
	var buf bytes.Buffer
	if err := messagePage.Execute(&buf, struct{ Title, Message string }{title, message}); err != nil {
		return template.HTMLEscapeString(message)
	}
	return buf.String()
}
