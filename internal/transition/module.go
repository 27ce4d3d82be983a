package transition

import "github.com/petrijr/packflow/pkg/api"

func CanScanModuleCells(s api.ModuleState) bool { return s == api.ModuleStateInAssembly }
func CanSerializeModule(s api.ModuleState) bool { return s == api.ModuleStateInAssembly }
func CanCompleteModule(s api.ModuleState) bool  { return s == api.ModuleStateInAssembly }
func CanAcceptModuleQa(s api.ModuleState) bool  { return s == api.ModuleStatePendingQA }

func NextStateOnCompleteModule() api.ModuleState { return api.ModuleStatePendingQA }
func NextStateOnAcceptModuleQa() api.ModuleState { return api.ModuleStateCompleted }

// CanStartModule reports whether modules may be assembled for a batch in state s.
func CanStartModule(s api.BatchState) bool { return s == api.BatchStateInProgress }
