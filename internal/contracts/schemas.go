package contracts

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"strings"

	"market-sync-service/schemas"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var compiledSchemas = make(map[string]*jsonschema.Schema)

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	// Сначала регистрируем все схемы как ресурсы, чтобы работали $ref между ними
	err := fs.WalkDir(schemas.SchemasFS, "events", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			file, _ := schemas.SchemasFS.Open(path)
			defer file.Close()
			if err := compiler.AddResource(path, file); err != nil {
				log.Fatalf("failed to add schema resource %s: %v", path, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("error walking and adding schema resources: %v", err)
	}

	// Второй проход - компиляция и регистрация под ключом вида
	// "SyncReportEvent/1.0.0"
	err = fs.WalkDir(schemas.SchemasFS, "events", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			schema, err := compiler.Compile(path)
			if err != nil {
				log.Printf("WARNING: could not compile schema %s: %v. Skipping.", path, err)
				return nil
			}

			key := generateKeyFromPath(path)
			compiledSchemas[key] = schema
		}
		return nil
	})
	if err != nil {
		log.Fatalf("error walking and compiling schemas: %v", err)
	}
}

// generateKeyFromPath преобразует путь вида "events/sync-report/v1.json"
// в ключ вида "SyncReportEvent/1.0.0".
func generateKeyFromPath(path string) string {
	trimmedPath := strings.TrimPrefix(path, "events/")
	trimmedPath = strings.TrimSuffix(trimmedPath, ".json")

	parts := strings.Split(trimmedPath, "/")
	if len(parts) != 2 {
		return ""
	}

	caser := cases.Title(language.English)

	eventNameParts := strings.Split(parts[0], "-")
	var eventNameBuilder strings.Builder
	for _, p := range eventNameParts {
		eventNameBuilder.WriteString(caser.String(p))
	}
	eventNameBuilder.WriteString("Event")
	eventName := eventNameBuilder.String()

	version := strings.Replace(parts[1], "v", "", 1) + ".0.0"

	return fmt.Sprintf("%s/%s", eventName, version)
}

// ValidateEvent проверяет тело сообщения по зарегистрированной схеме.
func ValidateEvent(eventType, eventVersion string, body []byte) error {
	key := fmt.Sprintf("%s/%s", eventType, eventVersion)
	schema, ok := compiledSchemas[key]
	if !ok {
		return fmt.Errorf("schema for event '%s' version '%s' not found", eventType, eventVersion)
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("message body is not a valid JSON: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("JSON schema validation failed: %w", err)
	}

	return nil
}
