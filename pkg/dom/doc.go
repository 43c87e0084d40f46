// Package dom is the displayed document the patch engine keeps in sync.
//
// It is a deliberately small element/text tree: attributes, inline style,
// event listeners with bubbling, form state with validity, a mutation
// observer hook and a session history. It is not a browser. Hosts (the
// headless CLI mirror, tests, embedders) drive it; the engine, dispatcher,
// navigation coordinator and drift monitor read and write it.
//
// A Document and all of its nodes must only be touched from one goroutine,
// the session event loop.
package dom
