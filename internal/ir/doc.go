// Package ir provides the canonical value representation for form snapshots.
//
// Every form in the CRM (client, job, lead, quote, invoice) is captured as an
// IRObject. The diff engine, the draft backends and the scenario harness all
// speak this representation; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - money is carried as integer cents
//   - null is a legal value (a cleared field); the diff engine collapses it
//     with "" and missing keys
//   - All JSON tags use snake_case
//   - Logical sequence numbers only, never wall-clock timestamps, for ordering
package ir
