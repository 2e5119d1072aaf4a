// Package services implements the business logic layer of the forecast
// service. It sits between the HTTP handlers and the pipeline packages
// (dataset, forecast, model, session, exporter) so that handlers only decode
// requests and encode responses.
//
// # Available Services
//
//   - ForecastService: runs the upload-to-forecast pipeline, reruns it with a
//     new horizon and answers table, series, stock and export queries
//   - HealthService: liveness, readiness (model loadable) and version
//
// # Pipeline
//
// Upload runs these stages, each in its own span:
//
//	forecast.load_model          shared model from the registry
//	forecast.load_history        CSV or XLSX to a typed frame
//	forecast.extract_dimensions  SKUs, stores and first-seen attributes
//	forecast.build_future_frame  dates x SKUs x stores
//	forecast.predict             model scores, rounded half to even
//
// A failing stage aborts the request. No partial forecast is stored and no
// stage is retried.
//
// # Error Handling
//
// Services return the typed errors of pkg/contracts/domain unchanged, so the
// HTTP error handler can map them with errors.As and errors.Is:
//
//   - SchemaError, EmptyDatasetError, FeatureMismatchError for bad uploads
//   - ModelNotFoundError when the artifact is missing or unreadable
//   - ModelInferenceError, InvariantViolationError for internal failures
//   - ErrSessionNotFound, ErrUnknownSKU, ErrUnknownStore for lookups
//
// # Testing
//
// ForecastService is tested against a real session store and either a stub
// model or a model registry reading a temporary artifact:
//
//	path := testutil.WriteArtifact(t, testutil.SampleLinearArtifact())
//	svc := NewForecastService(cfg, model.NewRegistry(path, logger), store, logger)
package services
