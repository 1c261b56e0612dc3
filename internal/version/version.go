// ABOUTME: Product and version constants
// ABOUTME: Shared by the client, the server and mDNS advertisement
package version

const (
	Product      = "Chatterbox"
	Manufacturer = "harperreed"
)

// Version is overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "0.1.0"

// UserAgent identifies the client and server in HTTP headers
func UserAgent() string {
	return "chatterbox-go/" + Version
}
