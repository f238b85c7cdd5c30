// Package simpleaccount implements the account lifecycle of a community
// publishing platform: registering an account across an identity provider and a
// relational profile store, and deleting it again across the identity provider,
// the relational store and the blob store.
//
// Neither operation is transactional. Registration is a saga with a single
// compensating action (the identity is removed when the profile cannot be
// written). Deletion runs a fixed sequence of best-effort cleanup steps and
// finishes with identity deletion, which is the only step that decides the
// outcome.
//
// # Basic usage
//
//	svc, err := simpleaccount.New(
//		simpleaccount.WithIdentityStore(identities),
//		simpleaccount.WithRepository(repo),
//		simpleaccount.WithBlobStore(blobs),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res, err := svc.Register(ctx, simpleaccount.RegisterRequest{
//		Email:       "ann@example.com",
//		Password:    "secret",
//		DisplayName: "Ann",
//	})
//	if err != nil {
//		switch simpleaccount.KindOf(err) {
//		case simpleaccount.KindHandleTaken, simpleaccount.KindEmailTaken:
//			// tell the user
//		}
//	}
//
//	report, err := svc.DeleteAccount(ctx, simpleaccount.DeleteAccountRequest{
//		RequesterID: res.ID,
//		TargetID:    res.ID,
//	})
//
// # Categories
//
// Categories created by a deleted user survive when content of another user
// still links them; their creator becomes the sentinel identity. Categories only
// the deleted user ever used are removed. See PartitionCategories.
//
// # Backends
//
// In-memory, Postgres and object storage implementations live in the repo,
// identity and storage subpackages. The config package wires them from
// environment variables, the api package serves the operations over HTTP, and
// presets builds ready-made stacks for development and tests.
package simpleaccount
