package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bearops/shepherd/pkg/storage"
	"github.com/bearops/shepherd/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a resource definition file",
	Long: `Apply App, Host and Deployment definitions from a YAML file.

Examples:
  # Register an app
  shepherd apply -f app.yaml

  # Register a deployment
  shepherd apply -f deployment.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

// Resource is one YAML document in an apply file.
type Resource struct {
	Kind string                 `yaml:"kind"`
	Spec map[string]interface{} `yaml:"spec"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var resource Resource
	if err := yaml.Unmarshal(data, &resource); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	c, err := buildCore()
	if err != nil {
		return err
	}
	defer c.close()

	switch resource.Kind {
	case "App":
		return applyApp(c.store, &resource)
	case "Host":
		return applyHost(c.store, &resource)
	case "Deployment":
		return applyDeployment(c.store, &resource)
	default:
		return fmt.Errorf("unsupported resource kind: %s", resource.Kind)
	}
}

func applyApp(store storage.Store, resource *Resource) error {
	name := getString(resource.Spec, "name", "")
	if name == "" {
		return fmt.Errorf("app name is required")
	}

	app, err := store.GetApp(name)
	if storage.IsNotFound(err) {
		app = &types.App{Name: name, CreatedAt: time.Now()}
	} else if err != nil {
		return err
	}

	if err := store.PutApp(app); err != nil {
		return fmt.Errorf("failed to apply app: %w", err)
	}
	fmt.Printf("✓ App applied: %s\n", name)
	return nil
}

func applyHost(store storage.Store, resource *Resource) error {
	hostname := getString(resource.Spec, "hostname", "")
	port := getInt(resource.Spec, "port", 2376)
	if hostname == "" {
		return fmt.Errorf("host hostname is required")
	}

	host := &types.Host{
		Hostname: hostname,
		Port:     port,
		Alias:    getString(resource.Spec, "alias", ""),
		Status:   types.HostStatusUnknown,
	}
	if existing, err := store.GetHost(host.ID()); err == nil {
		// Keep the observed status on re-apply.
		host.Status = existing.Status
	}

	if err := store.PutHost(host); err != nil {
		return fmt.Errorf("failed to apply host: %w", err)
	}
	fmt.Printf("✓ Host applied: %s\n", host.ID())
	return nil
}

func applyDeployment(store storage.Store, resource *Resource) error {
	app := getString(resource.Spec, "app", "")
	tag := getString(resource.Spec, "tag", "")
	environment := getString(resource.Spec, "environment", "")
	if app == "" || tag == "" || environment == "" {
		return fmt.Errorf("deployment app, tag and environment are required")
	}

	dep := &types.Deployment{
		AppName:        app,
		ImageTag:       tag,
		Environment:    environment,
		StatusPort:     getInt(resource.Spec, "statusPort", 0),
		StatusEndpoint: getString(resource.Spec, "statusEndpoint", ""),
		Hosts:          getStrings(resource.Spec, "hosts"),
		DependsOn:      getStrings(resource.Spec, "dependsOn"),
		MappedPorts:    getStrings(resource.Spec, "mappedPorts"),
		MappedVolumes:  getStrings(resource.Spec, "mappedVolumes"),
		Env:            getStrings(resource.Spec, "env"),
		CreatedAt:      time.Now(),
	}
	if existing, err := store.GetDeployment(dep.ID()); err == nil {
		dep.CreatedAt = existing.CreatedAt
	}

	if err := store.PutDeployment(dep); err != nil {
		return fmt.Errorf("failed to apply deployment: %w", err)
	}
	fmt.Printf("✓ Deployment applied: %s\n", dep.ID())
	return nil
}

// Helper functions
func getString(m map[string]interface{}, key, defaultValue string) string {
	if v, ok := m[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return defaultValue
}

func getInt(m map[string]interface{}, key string, defaultValue int) int {
	if v, ok := m[key]; ok {
		switch val := v.(type) {
		case int:
			return val
		case float64:
			return int(val)
		}
	}
	return defaultValue
}

func getStrings(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprintf("%v", v))
	}
	return out
}
