package dosing

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/andreevsm/aquadose/internal/chem"
	"github.com/andreevsm/aquadose/internal/defaults"
	"github.com/andreevsm/aquadose/internal/tank"
)

const doseEpsilon = 0.001

func loadElements(t *testing.T) *chem.Catalog {
	t.Helper()
	cat, err := chem.LoadCatalog(defaults.Elements)
	if err != nil {
		t.Fatalf("load element catalog: %v", err)
	}
	return cat
}

func sampleTank(t *testing.T) *tank.Tank {
	t.Helper()
	tk, err := tank.NewVolume(200, false)
	if err != nil {
		t.Fatalf("tank: %v", err)
	}
	return tk
}

func parseCompound(t *testing.T, formula string, cat *chem.Catalog) *chem.Compound {
	t.Helper()
	c, err := chem.Parse(formula, cat)
	if err != nil {
		t.Fatalf("parse %q: %v", formula, err)
	}
	return c
}

func deltaEq(t *testing.T, got, want, eps float64) {
	t.Helper()
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	if diff >= eps {
		t.Fatalf("got %v, want %v (±%v)", got, want, eps)
	}
}

// 1 g of KNO3 into a 200 L tank (170 L effective).
func TestDryResultOfDose(t *testing.T) {
	cat := loadElements(t)
	tk := sampleTank(t)
	kno3 := parseCompound(t, "KNO3", cat)

	dosing := &DryDosing{DiluteInput: 1, What: ResultOfDose}
	res, err := dosing.Dilute(kno3, cat, tk)
	if err != nil {
		t.Fatalf("dilute: %v", err)
	}

	deltaEq(t, res.CompoundDose, 1.0, doseEpsilon)
	if len(res.ElementsDose) != 2 {
		t.Fatalf("expected 2 element doses, got %d", len(res.ElementsDose))
	}
	if res.ElementsDose[0].Element != "N" {
		t.Fatalf("first element = %s, want N", res.ElementsDose[0].Element)
	}
	deltaEq(t, res.ElementsDose[0].Dose, 0.815, doseEpsilon)
	if res.ElementsDose[1].Element != "K" {
		t.Fatalf("second element = %s, want K", res.ElementsDose[1].Element)
	}
	deltaEq(t, res.ElementsDose[1].Dose, 2.275, doseEpsilon)

	// N restated as nitrate.
	if len(res.ElementsDose[0].Aliases) == 0 {
		t.Fatal("N dose has no alias restatements")
	}
	no3 := res.ElementsDose[0].Aliases[0]
	if no3.Alias != "NO3" {
		t.Fatalf("alias = %s, want NO3", no3.Alias)
	}
	deltaEq(t, no3.Dose, 3.607, doseEpsilon)
}

// 10 g dissolved in 1000 mL, dosed 100 mL at a time: exactly the 1 g dry
// case.
func TestSolutionResultOfDose(t *testing.T) {
	cat := loadElements(t)
	tk := sampleTank(t)
	kno3 := parseCompound(t, "KNO3", cat)

	dosing := &SolutionDosing{
		ContainerVolume: 1000,
		PortionVolume:   100,
		SolutionInput:   10,
		What:            ResultOfDose,
	}
	res, err := dosing.Dilute(kno3, cat, tk)
	if err != nil {
		t.Fatalf("dilute: %v", err)
	}

	deltaEq(t, res.CompoundDose, 10.0, doseEpsilon)
	deltaEq(t, res.ElementsDose[0].Dose, 0.815, doseEpsilon)
	deltaEq(t, res.ElementsDose[1].Dose, 2.275, doseEpsilon)
}

// TargetDose must be the algebraic inverse of ResultOfDose.
func TestDryTargetDoseRoundTrip(t *testing.T) {
	cat := loadElements(t)
	tk := sampleTank(t)
	kno3 := parseCompound(t, "KNO3", cat)

	const targetN = 2.5 // mg/L

	inverse := &DryDosing{DiluteInput: targetN, What: TargetDose, TargetElement: "N"}
	res, err := inverse.Dilute(kno3, cat, tk)
	if err != nil {
		t.Fatalf("target dilute: %v", err)
	}
	if res.CompoundDose <= 0 {
		t.Fatalf("compound dose = %v", res.CompoundDose)
	}
	deltaEq(t, res.ElementsDose[0].Dose, targetN, doseEpsilon)

	forward := &DryDosing{DiluteInput: res.CompoundDose, What: ResultOfDose}
	back, err := forward.Dilute(kno3, cat, tk)
	if err != nil {
		t.Fatalf("forward dilute: %v", err)
	}
	deltaEq(t, back.ElementsDose[0].Dose, targetN, doseEpsilon)
}

func TestSolutionTargetDoseRoundTrip(t *testing.T) {
	cat := loadElements(t)
	tk := sampleTank(t)
	kno3 := parseCompound(t, "KNO3", cat)

	const targetK = 4.0 // mg/L

	inverse := &SolutionDosing{
		ContainerVolume: 500,
		PortionVolume:   25,
		SolutionInput:   targetK,
		What:            TargetDose,
		TargetElement:   "K",
	}
	res, err := inverse.Dilute(kno3, cat, tk)
	if err != nil {
		t.Fatalf("target dilute: %v", err)
	}
	deltaEq(t, res.ElementsDose[1].Dose, targetK, doseEpsilon)

	forward := &SolutionDosing{
		ContainerVolume: 500,
		PortionVolume:   25,
		SolutionInput:   res.CompoundDose,
		What:            ResultOfDose,
	}
	back, err := forward.Dilute(kno3, cat, tk)
	if err != nil {
		t.Fatalf("forward dilute: %v", err)
	}
	deltaEq(t, back.ElementsDose[1].Dose, targetK, doseEpsilon)
}

// Targeting an alias molecule converts the request to elemental terms:
// 10 mg/L of NO3 is about 2.259 mg/L of N.
func TestTargetDoseViaAlias(t *testing.T) {
	cat := loadElements(t)
	tk := sampleTank(t)
	kno3 := parseCompound(t, "KNO3", cat)

	dosing := &DryDosing{DiluteInput: 10, What: TargetDose, TargetElement: "NO3"}
	res, err := dosing.Dilute(kno3, cat, tk)
	if err != nil {
		t.Fatalf("dilute: %v", err)
	}

	deltaEq(t, res.ElementsDose[0].Dose, 2.259, doseEpsilon)
	deltaEq(t, res.ElementsDose[0].Aliases[0].Dose, 10.0, doseEpsilon)
}

func TestTargetElementErrors(t *testing.T) {
	cat := loadElements(t)
	tk := sampleTank(t)
	kno3 := parseCompound(t, "KNO3", cat)

	missing := &DryDosing{DiluteInput: 1, What: TargetDose, TargetElement: "P"}
	if _, err := missing.Dilute(kno3, cat, tk); !errors.Is(err, ErrMissingTargetElement) {
		t.Fatalf("got %v, want ErrMissingTargetElement", err)
	}

	unset := &DryDosing{DiluteInput: 1, What: TargetDose}
	if _, err := unset.Dilute(kno3, cat, tk); !errors.Is(err, ErrMissingTargetElement) {
		t.Fatalf("got %v, want ErrMissingTargetElement", err)
	}

	garbage := &DryDosing{DiluteInput: 1, What: TargetDose, TargetElement: "Ololo"}
	if _, err := garbage.Dilute(kno3, cat, tk); !errors.Is(err, chem.ErrUnknownElement) {
		t.Fatalf("got %v, want ErrUnknownElement", err)
	}
}

func TestInvalidInputs(t *testing.T) {
	cat := loadElements(t)
	tk := sampleTank(t)
	kno3 := parseCompound(t, "KNO3", cat)

	dry := &DryDosing{DiluteInput: 0, What: ResultOfDose}
	if _, err := dry.Dilute(kno3, cat, tk); !errors.Is(err, ErrInvalidDose) {
		t.Fatalf("got %v, want ErrInvalidDose", err)
	}

	sol := &SolutionDosing{ContainerVolume: 0, PortionVolume: 100, SolutionInput: 1}
	if _, err := sol.Dilute(kno3, cat, tk); !errors.Is(err, ErrInvalidDose) {
		t.Fatalf("got %v, want ErrInvalidDose", err)
	}
}

func TestRequestDecoding(t *testing.T) {
	var dry DryDosing
	payload := `{"dilute_input": 2.5, "what": "TargetDose", "target_element": "NO3"}`
	if err := json.Unmarshal([]byte(payload), &dry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if dry.What != TargetDose || dry.TargetElement != "NO3" {
		t.Fatalf("decoded %+v", dry)
	}

	var sol SolutionDosing
	payload = `{"container_volume": 1000, "portion_volume": 100, "solution_input": 10, "what": "ResultOfDose"}`
	if err := json.Unmarshal([]byte(payload), &sol); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sol.What != ResultOfDose || sol.ContainerVolume != 1000 {
		t.Fatalf("decoded %+v", sol)
	}

	if err := json.Unmarshal([]byte(`{"what": "Nonsense"}`), &dry); err == nil {
		t.Fatal("expected error for unknown calc type")
	}
}

func TestRequestFromYAML(t *testing.T) {
	method, err := FromYAML([]byte(`
dry:
  dilute_input: 2.5
  what: TargetDose
  target_element: NO3
`))
	if err != nil {
		t.Fatalf("from yaml: %v", err)
	}
	dry, ok := method.(*DryDosing)
	if !ok {
		t.Fatalf("decoded %T, want *DryDosing", method)
	}
	if dry.DiluteInput != 2.5 || dry.What != TargetDose || dry.TargetElement != "NO3" {
		t.Fatalf("decoded %+v", dry)
	}

	method, err = FromYAML([]byte(`
solution:
  container_volume: 1000
  portion_volume: 100
  solution_input: 10
  what: ResultOfDose
`))
	if err != nil {
		t.Fatalf("from yaml: %v", err)
	}
	sol, ok := method.(*SolutionDosing)
	if !ok {
		t.Fatalf("decoded %T, want *SolutionDosing", method)
	}
	if sol.ContainerVolume != 1000 || sol.What != ResultOfDose {
		t.Fatalf("decoded %+v", sol)
	}

	for name, doc := range map[string]string{
		"empty":    "",
		"both":     "dry: {dilute_input: 1}\nsolution: {solution_input: 1}\n",
		"bad yaml": "dry: [",
		"bad what": "dry: {dilute_input: 1, what: Nonsense}\n",
	} {
		if _, err := FromYAML([]byte(doc)); !errors.Is(err, ErrInvalidDose) {
			t.Errorf("%s: got %v, want ErrInvalidDose", name, err)
		}
	}
}
