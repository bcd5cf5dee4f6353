// Package lunaris provides the shared foundation of the lunaris-api
// rendered-frame cache: the error taxonomy and the process-wide logger.
//
// # Overview
//
// lunaris-api stores the output of expensive per-entity render operations at
// three cost/fidelity tiers and migrates entries between tiers as access
// patterns change. Frequently viewed frames live in the cheapest-to-present
// tier (a GPU-resident texture) while cold frames are compacted into
// compressed CPU memory.
//
// The module is organized into:
//   - render: pixel buffers, codecs, texture interop, and the tiered cache
//   - gpu: the device abstraction (wgpu-backed or in-memory)
//   - plugin: the renderer collaborator contract and capability registry
//
// # Quick Start
//
//	dev := gpu.NewMemDevice()
//	cache, err := render.NewTieredCache(render.Config{
//	    LowCapacity:  256,
//	    MedCapacity:  64,
//	    HighCapacity: 16,
//	    Codec:        render.StrategyQOI,
//	    Device:       dev,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cache.Insert(id, frame)  // renderer completion
//	cache.Update()           // periodic rebalance
//	p, err := cache.Lookup(id)
package lunaris
