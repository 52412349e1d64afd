package harness

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RPCPortToken is replaced with the chosen RPC port when a compose template
// is rendered.
const RPCPortToken = "{RPC_PORT}"

const templateFileName = "docker-compose-btc-template.yml"

//go:embed docker-compose-btc-template.yml
var defaultComposeTemplate []byte

// RenderTemplate substitutes every RPCPortToken in template with port. The
// rest of the template is left untouched and is not validated.
func RenderTemplate(template string, port int) string {
	return strings.ReplaceAll(template, RPCPortToken, strconv.Itoa(port))
}

// RenderTemplateFile reads the template at src and writes the rendered
// result to dst.
func RenderTemplateFile(src, dst string, port int) error {
	template, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read compose template: %w", err)
	}

	if err := os.WriteFile(dst, []byte(RenderTemplate(string(template), port)), 0o644); err != nil {
		return fmt.Errorf("failed to write compose file: %w", err)
	}

	return nil
}
