package nginx

import (
	"regexp"
	"strings"

	"honey-installer/internal/installer"
)

// Variable is an nginx log variable worth having in the access log.
type Variable struct {
	Name string
	// Since is the first nginx version that has the variable.
	Since       string
	Description string
}

var recommended = []Variable{
	{"$bytes_sent", "1.0.0", "The size of the response sent back to the client, including headers."},
	{"$host", "1.0.0", "The requested Host header, identifying how your server was addressed."},
	{"$http_authorization", "1.0.0", "Logging authorization headers can help associate logs with individual users."},
	{"$remote_addr", "1.0.0", "This field holds the IP address of the host making the connection to nginx."},
	{"$remote_user", "1.0.0", "The user name supplied when using basic authentication."},
	{"$http_x_forwarded_for", "1.0.0", "When running behind a load balancer, this header will hold the origin IP address."},
	{"$http_x_forwarded_proto", "1.0.0", "If you're terminating TLS in front of nginx, this header will hold the origin protocol"},
	{"$http_referer", "1.0.0", "The referring site, when the client followed a link to your site."},
	{"$http_user_agent", "1.0.0", "The User-Agent header, which is useful in identifying your clients."},
	{"$request", "1.0.0", "The HTTP verb, request path, and protocol version."},
	{"$status", "1.0.0", "The HTTP status code returned for this request."},
	{"$request_time", "1.0.0", "The time, in milliseconds, your server took to respond to the request."},
	{"$request_length", "1.0.0", "This is the length of the client's request to you, including headers and body."},
	{"$server_name", "1.0.0", "This is the hostname of the machine that accepted the request."},
	{"$request_id", "1.11.0", "add a unique ID to every request."},
}

// Missing returns the recommended variables that format lacks and that
// nginx version has. Header variables ($http_*) come back quoted, ready to
// paste into a log_format.
func Missing(format, version string) []Variable {
	var out []Variable
	for _, v := range recommended {
		if installer.CompareVersions(version, v.Since) < 0 {
			continue
		}
		if usesVariable(format, v.Name) {
			continue
		}
		if strings.HasPrefix(v.Name, "$http_") {
			v.Name = `"` + v.Name + `"`
		}
		out = append(out, v)
	}
	return out
}

// usesVariable matches whole variable names, so $request_time does not
// count as $request. nginx also accepts the ${name} spelling.
func usesVariable(format, name string) bool {
	bare := strings.TrimPrefix(name, "$")
	re := regexp.MustCompile(`\$(` + regexp.QuoteMeta(bare) + `\b|\{` + regexp.QuoteMeta(bare) + `\})`)
	return re.MatchString(format)
}

// SuggestedFormat is f with vars appended, rendered as log_format arguments.
func SuggestedFormat(f LogFormat, vars []Variable) string {
	names := make([]string, 0, len(vars))
	for _, v := range vars {
		names = append(names, v.Name)
	}
	format := strings.TrimRight(f.Format, " ")
	if len(names) > 0 {
		format += " " + strings.Join(names, " ")
	}
	return LogFormat{Name: f.Name, Format: format}.String()
}
