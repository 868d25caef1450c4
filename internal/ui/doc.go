// Package ui renders the lottery list as a Bubble Tea terminal application.
//
// The Model subscribes to a lottery store and redraws whenever a new
// snapshot is broadcast. Every store interaction (Start, Refresh and the
// focus, visibility and revalidate signals) runs inside a tea.Cmd so the
// event loop never blocks on the store while the store waits on Send.
//
// Keys:
//
//	r      force a revalidation
//	R      refresh and wait for the result
//	c      hide or show settled and canceled lotteries
//	T      cycle theme (saved to prefs)
//	h/?    help
//	q      quit
//
// Terminal focus reporting maps onto store signals: losing focus marks the
// store hidden (slower polling) and regaining it triggers a revalidation.
package ui
