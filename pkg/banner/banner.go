package banner

import (
	"fmt"
)

const banner = `
███████╗██╗  ██╗██╗   ██╗██╗     ██╗███╗   ██╗███████╗███████╗
██╔════╝██║ ██╔╝╚██╗ ██╔╝██║     ██║████╗  ██║██╔════╝██╔════╝
███████╗█████╔╝  ╚████╔╝ ██║     ██║██╔██╗ ██║█████╗  █████╗
╚════██║██╔═██╗   ╚██╔╝  ██║     ██║██║╚██╗██║██╔══╝  ██╔══╝
███████║██║  ██╗   ██║   ███████╗██║██║ ╚████║███████╗███████╗
╚══════╝╚═╝  ╚═╝   ╚═╝   ╚══════╝╚═╝╚═╝  ╚═══╝╚══════╝╚══════╝
`

// Print writes the startup banner with the effective runtime settings.
func Print(addr, dbPath, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/directory - Thread directory for the calling actor")
	fmt.Println("GET  /v1/threads/{threadID}/messages - Full message list")
	fmt.Println("POST /v1/threads/{threadID}/messages - Append a message (JSON: text, imageUrl)")
	fmt.Println("POST /v1/threads/{threadID}/read - Move the read watermark")
	fmt.Println("POST /v1/uploads - Store an image attachment (multipart: file)")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -H 'X-API-Key: <agent-key>' -H 'X-Actor-ID: agent-1' 'http://localhost%s/v1/directory'\n", addr)
	fmt.Printf("curl -X POST -H 'X-API-Key: <agent-key>' -H 'X-Actor-ID: agent-1' 'http://localhost%s/v1/threads/booking-1/messages' -d '{\"text\":\"hello\"}'\n", addr)
}
