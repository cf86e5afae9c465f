// Package omr implements optical mark recognition for multiple-choice answer sheets.
//
// A scanned page is graded in a single synchronous pass through eight stages:
//
//  1. Preprocess: crop to the calibrated Region, grayscale, blur and binarize
//     with an inverted adaptive (local Gaussian mean) threshold
//  2. ExtractBlobs: connected foreground blobs with their outer bounding geometry
//  3. FilterBubbles: keep blobs whose size, aspect ratio and enclosed area match
//     an answer oval
//  4. ClusterColumns: group bubbles into answer columns by horizontal position
//  5. GroupRows: group each column into question rows and order options A-E
//  6. Classify: decide from mean intensity which option (if any) is marked
//  7. Score: compare the classified answers against an AnswerKey
//  8. Render: draw the outcome onto a copy of the page for human review
//
// # Coordinate System
//
// Bubble coordinates are absolute page coordinates with (0,0) at the top-left
// corner. Each Bubble also carries its position relative to the Region.
//
// # Resolution
//
// Detection thresholds are expressed in pixels at the template resolution the
// Region was calibrated on. When a Region records its template dimensions and a
// page is scanned at a different resolution, the Region and every pixel
// threshold are rescaled before detection (see Region.ScaleTo and Params.Scaled).
//
// # Thread Safety
//
// A Grader is immutable after construction and may be shared between
// goroutines. Every call allocates its own intermediate bubbles, columns and
// rows; the Region and AnswerKey passed in are only read.
//
// # Build Tags
//
// Binarization and contour extraction are implemented natively. Building with
// the opencv tag routes both stages through gocv instead.
package omr
