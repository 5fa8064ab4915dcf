// Package command turns abstract vacuum intents into DPS writes.
//
// The dispatcher resolves the model's command table once, at construction.
// An intent the model cannot perform fails with UnsupportedCommandError
// before anything is sent. Accepted commands do not touch the state cache;
// the dispatcher asks the polling engine for a refresh and the next poll
// reports what the device actually did.
package command
