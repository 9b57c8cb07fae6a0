package blueprint

import "testing"

const sampleYAML = `
id: com.example.thermostat
version: "1.0.0"
tags: [hvac, sensor]
deviceContractFqName: com.example.ThermostatContract
properties:
  - name: temperature
    kind: PHYSICAL
    valueType: double
    readable: true
  - name: setpoint
    kind: LOGICAL
    valueType: double
    readable: true
    mutable: true
actions:
  - name: calibrate
    defaultTimeoutSeconds: 30
    triggerEvent: CalibrationStarted
    onSuccessEvent: CalibrationDone
peers:
  - name: hub2
    address: hub2.local:9000
children:
  - name: fan
    kind: REMOTE
    blueprintId: com.example.fan
    version: "1.0.0"
    peer: hub2
    remoteName: remoteFan
`

func TestLoadDeclarationYAML(t *testing.T) {
	d, err := LoadDeclarationYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("LoadDeclarationYAML: %v", err)
	}
	if d.ID != "com.example.thermostat" || d.Version != "1.0.0" {
		t.Fatalf("unexpected id/version: %s@%s", d.ID, d.Version)
	}
	if len(d.Tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", d.Tags)
	}
	if _, ok := d.Property("setpoint"); !ok {
		t.Fatal("expected setpoint property")
	}
	if a, ok := d.Action("calibrate"); !ok || a.TriggerEvent != "CalibrationStarted" {
		t.Fatalf("expected calibrate action with trigger event, got %+v ok=%v", a, ok)
	}
	if _, ok := d.Children["fan"]; !ok {
		t.Fatal("expected fan child component")
	}
}

func TestLoadDeclarationYAMLRejectsMissingID(t *testing.T) {
	if _, err := LoadDeclarationYAML([]byte("version: \"1.0.0\"\n")); err == nil {
		t.Fatal("expected error for missing id")
	}
}
