// Package imaging supports manual calibration of the answer region.
//
// It caches template images, describes them, and renders PNG previews of a
// candidate region: either the cropped region itself (CropRegion) or the whole
// page with a coordinate grid and the region outlined (RegionOverlay).
//
// # Coordinate System
//
// Coordinates are 0-based pixels with (0,0) at the top-left corner, X
// increasing rightward and Y downward. For regions (x1,y1) is inclusive and
// (x2,y2) exclusive.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The rendering functions never modify
// their input image.
package imaging
