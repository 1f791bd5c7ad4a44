// Package notecap is the Composition Root for notecap, a quick-capture
// notes core.
//
// It connects the domain (notes, the Repository, the Note Session
// Controller) with the infrastructure adapters (JSON file, bbolt, memory
// stores; in-process and spool event buses; window systems) using the
// Hexagonal Architecture pattern.
//
// Features:
//
//   - **Capture first**: a note is persisted and visible with a local title
//     before a generator suggests a better one in the background.
//   - **Resume and branch**: continue a previous note or fork it with its
//     history.
//   - **Many windows**: every window converges on the same notes through the
//     Cross-Window Event Bus and reconciliation with the store.
//   - **One editor per note**: the Editor Window Manager focuses an existing
//     editor instead of opening a second one.
//
// Usage:
//
//	app, err := notecap.New("./notes",
//		notecap.WithAdapter("bolt"),
//		notecap.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	defer app.Close()
//
//	if err := app.Start(ctx); err != nil {
//		return err
//	}
//	app.Session.Edit("# Groceries\nmilk #shopping")
//	note, err := app.Session.Submit(ctx)
package notecap
