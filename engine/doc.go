// Package engine wires all Cascade subsystems together and provides the
// application-level API for registering chainables and starting chains.
//
// The engine package exists to break a fundamental import cycle: the root
// cascade package defines Attempt, Params, and Entity (imported by chain,
// schedule, batch, and the rest) and therefore cannot import those packages
// back. Engine sits above all subsystem packages and below the application
// layer.
//
// # Building an Engine
//
//	c, err := cascade.New(
//	    cascade.WithStore(pgStore),
//	    cascade.WithMaxActiveBatches(5),
//	    cascade.WithEnqueueRate(20, 5),
//	)
//
//	eng, err := engine.Build(c,
//	    engine.WithExtension(myExtension),
//	    engine.WithMiddleware(myMiddleware),
//	    engine.WithBackoff(backoff.Exponential(time.Second, time.Minute)),
//	)
//
// # Registering Work
//
//	// Link handlers run on the platform.
//	eng.Handle(cascade.KindBatch, "send-invoices", sendInvoices)
//
//	// Chainables hook the boundaries around platform execution.
//	eng.Batch().Register(&InvoiceJob{})
//
// # Running Chains
//
//	eng.Start(ctx)
//	defer eng.Stop(ctx)
//
//	att, err := eng.StartChain(ctx, cascade.KindBatch, "send-invoices",
//	    cascade.Params{"period": "2026-08"})
package engine
