package deploy

import (
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

// Render writes the topology's manifests to w as a multi-document YAML
// stream, in apply order.
func (d *Deployer) Render(w io.Writer) error {
	objects := []any{
		d.buildSecret(),
		d.buildAppDeployment(),
		d.buildAppService(),
		d.buildEdgeDeployment(),
		d.buildEdgeService(),
	}

	for i, obj := range objects {
		if i > 0 {
			if _, err := io.WriteString(w, "---\n"); err != nil {
				return fmt.Errorf("write separator: %w", err)
			}
		}
		data, err := yaml.Marshal(obj)
		if err != nil {
			return fmt.Errorf("marshal manifest %d: %w", i, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write manifest %d: %w", i, err)
		}
	}

	return nil
}
