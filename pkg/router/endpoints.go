package router

// Router admin pages and form handlers. The l0..l3 query parameters select the
// menu position and must be sent verbatim.
const (
	PathInfo    = "/index.htm"
	PathNAT     = "/vs.htm?l0=1&l1=2&l2=0&l3=-1"
	PathNATSave = "/setup.cgi?l0=1&l1=2&l2=0&l3=-1"
	PathApply   = "/setup.cgi?l0=-1&l1=-1&l2=-1&l3=-1"
	PathCallLog = "/voice_call_logs.htm?l0=3&l1=2&l2=1&l3=-1"
)

// applyForm is the fixed body that commits all pending changes.
var applyForm = Form{
	{Key: "todo", Value: "apply"},
	{Key: "this_file", Value: "global_nav.htm"},
	{Key: "next_file", Value: "index.html"},
}
