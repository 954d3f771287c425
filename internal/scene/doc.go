// Package scene persists graphs as XML and rebuilds them.
//
// A scene file lists nodes parents-first with their slots, then links,
// then the graph output selections:
//
//	<graph version="1">
//		<nodes>
//			<node id="1" name="Loader" type="Loader" pos="0;0">
//				<slot index="0" name="out" type="TEXTURE_2D" place="OUTPUT" id="2"/>
//			</node>
//		</nodes>
//		<links>
//			<link in="3:4" out="1:2"/>
//		</links>
//		<outputs>
//			<output type="left" ids="1:2"/>
//		</outputs>
//	</graph>
//
// Load applies a document to a live graph. Saved ids are claimed first
// come first served; the graph's id allocator is ratcheted past every id
// in the file so later nodes never collide with it. Links are built only
// after every node exists, then GraphIsLoaded is broadcast.
package scene
