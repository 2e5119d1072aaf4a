// Package model loads pretrained demand-regression artifacts and scores
// feature matrices with them.
//
// # Artifacts
//
// An artifact is a JSON (.json) or YAML (.yaml, .yml) document trained and
// exported outside this service. Two kinds are understood:
//
//	gbtree  gradient-boosted regression trees in the XGBoost dump layout:
//	        a base score plus trees of split nodes and leaves. String features
//	        are encoded by their position in a per-feature category list.
//	linear  an intercept, one coefficient per numeric feature and an offset
//	        per category value of each string feature.
//
// Every artifact declares feature_names. Features are bound by name, so the
// column order of the matrix handed to Predict does not matter.
//
// # Registry
//
// A Registry owns the single shared model of a process. The first Get loads
// the artifact; concurrent first calls share one load. A failed load is not
// remembered, so deploying the artifact later fixes the service without a
// restart.
//
//	reg := model.NewRegistry("models/forecast_model.json", logger)
//	m, err := reg.Get(ctx)
//	if err != nil {
//		// *domain.ModelNotFoundError
//	}
//	preds, err := m.Predict(ctx, matrix)
package model
