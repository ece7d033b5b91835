// cmd/tools/registry-updater/main.go
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"inclusion-scoring/pkg/registry"
)

const defaultRegistryPath = "configs/model-registry.json"

func main() {
	if len(os.Args) < 2 {
		help(os.Stderr)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string, out io.Writer) error {
	switch command {
	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		name := fs.String("name", "", "Model name (e.g., Capstone_Project)")
		version := fs.String("version", "", "Model version (e.g., 3)")
		format := fs.String("format", "pmml-random-forest", "Artifact format (pmml-random-forest, pmml-gbm, lightgbm)")
		artifact := fs.String("artifact", "", "Artifact path, relative to the registry file")
		features := fs.String("features", "", "Comma separated feature columns, in model order")
		threshold := fs.Float64("threshold", 0, "Score threshold for score-producing formats")
		positive := fs.String("positive", "", "Label for scores at or above the threshold")
		negative := fs.String("negative", "", "Label for scores below the threshold")
		description := fs.String("description", "", "Description")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *name == "" || *version == "" || *artifact == "" {
			fs.Usage()
			return fmt.Errorf("name, version and artifact are required for add")
		}
		entry := registry.ModelEntry{
			Name:          *name,
			Version:       *version,
			Format:        *format,
			Path:          *artifact,
			Features:      splitList(*features),
			Threshold:     *threshold,
			PositiveLabel: *positive,
			NegativeLabel: *negative,
			Description:   *description,
		}
		if err := addModel(*path, entry); err != nil {
			return fmt.Errorf("adding model: %w", err)
		}
		fmt.Fprintf(out, "Added model: %s@%s\n", *name, *version)

	case "update":
		fs := flag.NewFlagSet("update", flag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		name := fs.String("name", "", "Model name to update")
		version := fs.String("version", "", "Model version to update")
		field := fs.String("field", "", "Field to update (format, path, features, threshold, positive, negative, description)")
		value := fs.String("value", "", "New value for the field")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *name == "" || *version == "" || *field == "" {
			fs.Usage()
			return fmt.Errorf("name, version and field are required for update")
		}
		if err := updateModel(*path, *name, *version, *field, *value); err != nil {
			return fmt.Errorf("updating model: %w", err)
		}
		fmt.Fprintf(out, "Updated model %s@%s, field %s to %s\n", *name, *version, *field, *value)

	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		reg, err := registry.LoadRegistry(*path)
		if err != nil {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		if err := reg.Validate(); err != nil {
			return fmt.Errorf("registry validation failed: %w", err)
		}
		fmt.Fprintf(out, "Registry validation passed. Found %d models.\n", len(reg.Models))

	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "Path to registry file")
		if err := fs.Parse(args); err != nil {
			return err
		}
		reg, err := registry.LoadRegistry(*path)
		if err != nil {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		listModels(reg, out)

	case "help":
		help(out)
	default:
		help(out)
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func addModel(path string, entry registry.ModelEntry) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		reg = registry.NewRegistry()
	}
	if err := reg.Add(entry); err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	return registry.SaveRegistry(reg, path)
}

func updateModel(path, name, version, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	idx := -1
	for i := range reg.Models {
		if reg.Models[i].Name == name && reg.Models[i].Version == version {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("model %s@%s not found", name, version)
	}

	m := &reg.Models[idx]
	switch field {
	case "format":
		m.Format = value
	case "path":
		m.Path = value
	case "features":
		m.Features = splitList(value)
	case "threshold":
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid threshold value: %w", err)
		}
		m.Threshold = threshold
	case "positive":
		m.PositiveLabel = value
	case "negative":
		m.NegativeLabel = value
	case "description":
		m.Description = value
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	if err := reg.Validate(); err != nil {
		return err
	}
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return registry.SaveRegistry(reg, path)
}

func listModels(reg *registry.ModelRegistry, out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tFORMAT\tCREATED\tPATH")
	for _, m := range reg.Models {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.Name, m.Version, m.Format, m.CreatedAt.Format(time.RFC3339), m.Path)
	}
	w.Flush()
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func help(out io.Writer) {
	fmt.Fprint(out, `
Usage: registry-updater <command> [flags]

Commands:
  add      Add a model version to the registry
  update   Update a field of an existing model version
  validate Validate the registry file
  list     List registered model versions
  help     Show this help message

Examples:
  registry-updater add -name Capstone_Project -version 3 -format pmml-random-forest -artifact models/capstone-v3.pmml
  registry-updater update -name Capstone_Project -version 3 -field threshold -value 0.6
  registry-updater validate -path configs/model-registry.json

Use 'registry-updater <command> -h' for more information about a command.
`)
}
