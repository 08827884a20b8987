package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAMLBytes(t *testing.T) {
	data := `
sensor_bridge:
  stream_joint_states: true
  stream_inertials: true

remote_control_board:
  joints_list: [hip, knee, ankle]

cameras:
  rgb_cameras_list: [cam_front]
  rgb_image_width: [320]
  rgb_image_height: [240]
`

	cfg, err := LoadYAMLBytes([]byte(data))
	if err != nil {
		t.Fatalf("LoadYAMLBytes failed: %v", err)
	}

	sec, err := cfg.GetSection("sensor_bridge")
	if err != nil {
		t.Fatalf("GetSection failed: %v", err)
	}
	enabled, err := sec.GetBool("stream_joint_states", false)
	if err != nil || !enabled {
		t.Errorf("stream_joint_states = %v, %v, want true", enabled, err)
	}

	board, err := cfg.GetSection("remote_control_board")
	if err != nil {
		t.Fatalf("GetSection failed: %v", err)
	}
	joints, err := board.GetList("joints_list", ",")
	if err != nil {
		t.Fatalf("GetList failed: %v", err)
	}
	if len(joints) != 3 || joints[0] != "hip" || joints[2] != "ankle" {
		t.Errorf("joints_list = %v, want [hip knee ankle]", joints)
	}

	cams, err := cfg.GetSection("cameras")
	if err != nil {
		t.Fatalf("GetSection failed: %v", err)
	}
	widths, err := cams.GetIntList("rgb_image_width", ",")
	if err != nil || len(widths) != 1 || widths[0] != 320 {
		t.Errorf("rgb_image_width = %v, %v, want [320]", widths, err)
	}
}

func TestLoadYAMLBytesOrderPreserved(t *testing.T) {
	data := `
zeta:
  a: 1
alpha:
  a: 1
mid:
  a: 1
`
	cfg, err := LoadYAMLBytes([]byte(data))
	if err != nil {
		t.Fatalf("LoadYAMLBytes failed: %v", err)
	}

	names := cfg.GetSectionNames()
	want := []string{"zeta", "alpha", "mid"}
	if len(names) != len(want) {
		t.Fatalf("section names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("section %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestLoadYAMLBytesErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"top level list", "- a\n- b\n"},
		{"scalar section", "sensor_bridge: yes\n"},
		{"nested collection value", "s:\n  opt:\n    - [1, 2]\n"},
		{"mapping value", "s:\n  opt:\n    inner: 1\n"},
		{"invalid yaml", "s: [unclosed\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadYAMLBytes([]byte(tc.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadYAMLBytesEmpty(t *testing.T) {
	cfg, err := LoadYAMLBytes(nil)
	if err != nil {
		t.Fatalf("LoadYAMLBytes failed: %v", err)
	}
	if len(cfg.GetSectionNames()) != 0 {
		t.Errorf("expected no sections, got %v", cfg.GetSectionNames())
	}
}

func TestLoadFileByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "bridge.yaml")
	if err := os.WriteFile(yamlPath, []byte("sensor_bridge:\n  stream_inertials: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	iniPath := filepath.Join(dir, "bridge.cfg")
	if err := os.WriteFile(iniPath, []byte("[sensor_bridge]\nstream_inertials: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{yamlPath, iniPath} {
		cfg, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile(%s) failed: %v", path, err)
		}
		if !cfg.HasSection("sensor_bridge") {
			t.Errorf("LoadFile(%s): missing sensor_bridge section", path)
		}
	}
}
