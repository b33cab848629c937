// Package harness runs merge scenarios: a seeded store, a sequence of
// observed associations, and expectations about the result.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: number_transfer
//	description: "A phone number moves to a new account"
//	local: { aci: <uuid>, phone: "+15550009999" }
//	records:
//	  - { unique_id: alice, service_id: <uuid>, phone: "+15550000001", session: true }
//	groups:
//	  - { group_id: g1, phone: "+15550000001", state: invited, role: admin }
//	profiles:
//	  - { phone: "+15550000001", given_name: Ann }
//	steps:
//	  - { source: directory, service_id: <uuid>, phone: "+15550000001" }
//	  - { source: sender, service_id: <uuid>, fail_observer: true, expect_error: OBSERVER_FAILED }
//	expect:
//	  records:
//	    - { unique_id: alice, service_id: <uuid> }
//	    - { service_id: <uuid>, phone: "+15550000001" }
//	  events: [will_break, did_learn]
//	  notices: 0
//	  pending_sync: [alice, r-1]
//	  members:
//	    - { group_id: g1, service_id: <uuid>, state: invited, role: admin }
//
// Sources are the merge entry points: local, linked-device, directory and
// sender. Step error codes are the engine's MergeErrorCode values plus
// PHONE_REQUIRED and ERROR.
//
// # Determinism
//
// Every scenario runs in a fresh in-memory SQLite store. Recipient unique
// ids are "r-1", "r-2", ... in creation order, seeded records default to
// "seed-N", and orphaned records get ffffffff-0000-4000-8000-00000000000N.
// The same scenario therefore always produces the same snapshot, which
// RunWithGolden compares against testdata/golden/<name>.golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/number_transfer.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
