// Package harness provides YAML-driven build scenarios for exercising
// the full generation pipeline: a scenario declares a system config and
// assertions over the assembled graph, and golden files pin the rendered
// XML byte for byte.
package harness
