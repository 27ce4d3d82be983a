// Package transition defines the legal state graph of every flow type as
// small pure functions. A CanX predicate reports whether X is a legal edge
// from a state; the matching NextStateOnX returns the single state reached
// through it. Nothing here reads the clock or touches the store.
package transition

import "github.com/petrijr/packflow/pkg/api"

func CanSubmitSku(s api.SkuState) bool   { return s == api.SkuStateDraft }
func CanApproveSku(s api.SkuState) bool  { return s == api.SkuStateReview }
func CanRejectSku(s api.SkuState) bool   { return s == api.SkuStateReview }
func CanActivateSku(s api.SkuState) bool { return s == api.SkuStateApproved }
func CanRetireSku(s api.SkuState) bool   { return s == api.SkuStateActive }

func NextStateOnSubmitSku() api.SkuState   { return api.SkuStateReview }
func NextStateOnApproveSku() api.SkuState  { return api.SkuStateApproved }
func NextStateOnRejectSku() api.SkuState   { return api.SkuStateDraft }
func NextStateOnActivateSku() api.SkuState { return api.SkuStateActive }
func NextStateOnRetireSku() api.SkuState   { return api.SkuStateObsolete }
