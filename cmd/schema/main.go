// Command schema regenerates pkg/config/schema.json from the Config struct.
// Run it after changing config fields so the embedded schema stays in sync.
package main

import (
	"encoding/json"
	"log"
	"os"

	"pressbrief/pkg/config"
)

func main() {
	schema, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("reflect schema: %v", err)
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("marshal schema: %v", err)
	}
	data = append(data, '\n')

	out := "pkg/config/schema.json"
	if len(os.Args) > 1 {
		out = os.Args[1]
	}
	if err := os.WriteFile(out, data, 0o600); err != nil {
		log.Fatalf("write %s: %v", out, err)
	}
	log.Printf("schema written to %s", out)
}
