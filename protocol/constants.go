package protocol

// LatestVersion is the MCP revision this server speaks by default.
const LatestVersion = "2025-03-26"

// SupportedVersions lists the MCP revisions accepted during initialization,
// newest first.
var SupportedVersions = []string{LatestVersion, "2024-11-05"}

// MCP method names.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
	MethodPing        = "ping"
)

// HTTP header names used by the Streamable HTTP transport.
const (
	HeaderSessionID       = "Mcp-Session-Id"
	HeaderProtocolVersion = "Mcp-Protocol-Version"
)

// NegotiateVersion returns requested when it is supported, otherwise LatestVersion.
func NegotiateVersion(requested string) string {
	for _, v := range SupportedVersions {
		if v == requested {
			return v
		}
	}
	return LatestVersion
}
