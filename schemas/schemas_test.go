package schemas_test

import (
	"testing"

	"github.com/reoring/ccv/schema"
	"github.com/reoring/ccv/schemas"
	"github.com/reoring/ccv/source"
	"github.com/reoring/ccv/validator"
	"github.com/reoring/ccv/value"
)

func load(t *testing.T, raw []byte) *schema.Resolved {
	t.Helper()
	r, err := schema.Load(raw)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return r
}

func hasRef(v value.Value) bool {
	switch v.Kind() {
	case value.KindMapping:
		for _, m := range v.Members() {
			if m.Key == "$ref" && m.Value.Kind() == value.KindString {
				return true
			}
			if hasRef(m.Value) {
				return true
			}
		}
	case value.KindSequence:
		for _, it := range v.Items() {
			if hasRef(it) {
				return true
			}
		}
	}
	return false
}

func TestEmbeddedSchemasResolve(t *testing.T) {
	for name, raw := range map[string][]byte{"cloud-config": schemas.CloudConfig, "network-config": schemas.NetworkConfig} {
		t.Run(name, func(t *testing.T) {
			r := load(t, raw)
			if hasRef(r.Document) {
				t.Fatalf("resolved document still holds a $ref")
			}
			if r.Document.Has("$defs") {
				t.Fatalf("resolved document still holds $defs")
			}
			if len(r.Digest) != 64 {
				t.Fatalf("digest %q", r.Digest)
			}
		})
	}
}

func check(t *testing.T, r *schema.Resolved, doc string) validator.Report {
	t.Helper()
	res, err := source.Parse([]byte(doc), source.FormatYAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return validator.Validate(res.Value, r.Root)
}

func TestCloudConfig(t *testing.T) {
	r := load(t, schemas.CloudConfig)
	cases := []struct {
		name  string
		doc   string
		valid bool
	}{
		{"unknown key", "#cloud-config\nasdfafd: 1\n", true},
		{"empty", "#cloud-config\n", false},
		{"typical", `#cloud-config
hostname: web-1
timezone: Europe/Paris
package_update: true
packages:
  - nginx
  - [libc6, 2.31-0ubuntu9]
users:
  - default
  - name: alice
    groups: [sudo, adm]
    sudo: "ALL=(ALL) NOPASSWD:ALL"
    shell: /bin/bash
    uid: 1000
    ssh_authorized_keys:
      - ssh-ed25519 AAAA alice@example
write_files:
  - path: /etc/motd
    content: hello
    permissions: "0644"
runcmd:
  - [systemctl, restart, nginx]
  - echo done
power_state:
  mode: reboot
  delay: now
`, true},
		{"user without name", "users:\n  - shell: /bin/sh\n", false},
		{"write_files without path", "write_files:\n  - content: x\n", false},
		{"bad power mode", "power_state:\n  mode: sleep\n", false},
		{"root list", "- a\n", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := check(t, r, tc.doc)
			if rep.Valid() != tc.valid {
				t.Fatalf("valid = %v, want %v: %v", rep.Valid(), tc.valid, rep.Errors)
			}
		})
	}
}

func TestCloudConfigDeprecations(t *testing.T) {
	r := load(t, schemas.CloudConfig)
	rep := check(t, r, "apt_update: true\nusers:\n  - name: bob\n    uid: \"1001\"\n")
	if !rep.Valid() {
		t.Fatalf("unexpected errors %v", rep.Errors)
	}
	if len(rep.Annotations) != 2 {
		t.Fatalf("want 2 annotations, got %v", rep.Annotations)
	}
	if rep.Annotations[0].Path != "/apt_update" || rep.Annotations[1].Path != "/users/0/uid" {
		t.Fatalf("annotation paths %v", rep.Annotations)
	}
}

func TestNetworkConfig(t *testing.T) {
	r := load(t, schemas.NetworkConfig)
	const bond = `
network:
  version: 1
  config:
    - type: bond
      name: a
      mac_address: aa:bb
      mtu: 1
      subnets:
        - type: dhcp6
          control: manual
          netmask: 255.255.255.0
          gateway: 10.0.0.1
          dns_nameservers:
            - 8.8.8.8
          dns_search:
            - find.me
          routes:
            - type: route
              destination: 10.20.0.0/8
              gateway: a.b.c.d
              metric: 200`
	if rep := check(t, r, bond); !rep.Valid() || len(rep.Annotations) != 0 {
		t.Fatalf("bond sample: %+v", rep)
	}

	rep := check(t, r, "network:\n  version: 2\n  config: []\n")
	if rep.Valid() || rep.Errors[0].Path != "/network/version" {
		t.Fatalf("version 2 should be rejected at /network/version: %v", rep.Errors)
	}
	rep = check(t, r, "network:\n  version: 1\n  config:\n    - type: vlan\n      name: v\n")
	if rep.Valid() || rep.Errors[0].Code != validator.CodeUnionNone {
		t.Fatalf("incomplete vlan: %v", rep.Errors)
	}
}
