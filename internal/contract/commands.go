package contract

// Host commands. Each is registered with its argument and result schema at
// package initialisation.
var (
	AddPhotosFromFolder    = DefineCommand[ImportArgs, *ImportArgs, ImportResult, *ImportResult]("add_photos_from_folder")
	AddPhotosToLibrary     = DefineCommand[AddFilesArgs, *AddFilesArgs, ImportResult, *ImportResult]("add_photos_to_library")
	GetPhotosFromLibrary   = DefineCommand[Empty, *Empty, Photos, *Photos]("get_photos_from_library")
	ClearLibrary           = DefineCommand[Empty, *Empty, Empty, *Empty]("clear_library")
	RemovePhotoFromLibrary = DefineCommand[PhotoIDArgs, *PhotoIDArgs, Empty, *Empty]("remove_photo_from_library")
	SavePhotoConfig        = DefineCommand[SaveConfigArgs, *SaveConfigArgs, Empty, *Empty]("save_photo_config")
	SetPhotoFavorite       = DefineCommand[FavoriteArgs, *FavoriteArgs, Empty, *Empty]("set_photo_favorite")
	SetPhotoStack          = DefineCommand[StackArgs, *StackArgs, Empty, *Empty]("set_photo_stack")
	ClearPhotoStack        = DefineCommand[UnstackArgs, *UnstackArgs, Empty, *Empty]("clear_photo_stack")
	SetStackPrimary        = DefineCommand[StackPrimaryArgs, *StackPrimaryArgs, Empty, *Empty]("set_stack_primary")
	GetFullResAttachment   = DefineCommand[PhotoIDArgs, *PhotoIDArgs, FullRes, *FullRes]("get_full_res_attachment")
	AnalyzeImageMetadata   = DefineCommand[PathArgs, *PathArgs, ImageMetadata, *ImageMetadata]("analyze_image_metadata")
)

// Push channels.
var (
	SetLibrary      = DefineEvent[LibrarySnapshot, *LibrarySnapshot]("SetLibrary")
	Presence        = DefineEvent[PresencePayload, *PresencePayload]("Presence")
	TransportImages = DefineEvent[Photos, *Photos]("transport-images")
	EditImages      = DefineEvent[Photos, *Photos]("edit-images")
)
